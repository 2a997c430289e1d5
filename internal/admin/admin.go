// Package admin implements fitauthctl, the operator tool for managing
// FitAuth accounts directly against the configured credential store.
package admin

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/common"
	"github.com/dmitrijs2005/fitauth/internal/flagx"
	"github.com/dmitrijs2005/fitauth/internal/netx"
	"github.com/dmitrijs2005/fitauth/internal/server/models"
	"github.com/dmitrijs2005/fitauth/internal/server/services"
)

var (
	ErrUnknownCommand   = errors.New("unknown command")
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrNoFile           = errors.New("no file given, use -file")
)

// maxAvatarSize bounds the picture read by upload-avatar.
const maxAvatarSize = 10 << 20

var commandFlags = []string{
	"-email", "--email", "-name", "--name", "-file", "--file",
}

// Service is the subset of the authentication service the tool drives.
type Service interface {
	Register(ctx context.Context, in services.RegisterInput) (*services.AuthResult, error)
	SetPassword(ctx context.Context, in services.SetPasswordInput) (*models.PublicUser, error)
	CheckCredentials(ctx context.Context, in services.LoginInput) (*models.PublicUser, error)
	ListUsers(ctx context.Context) ([]models.PublicUser, error)
	ProfilePictureUploadURL(ctx context.Context, userID string) (*services.AvatarUpload, error)
}

type uploadFunc func(ctx context.Context, url, contentType string, body []byte) error

type App struct {
	svc    Service
	in     *bufio.Reader
	out    io.Writer
	upload uploadFunc
	read   func(name string) ([]byte, error)
}

func NewApp(svc Service, in io.Reader, out io.Writer) *App {
	return &App{
		svc:    svc,
		in:     bufio.NewReader(in),
		out:    out,
		upload: netx.UploadToPresignedURL,
		read:   readFile,
	}
}

type options struct {
	email string
	name  string
	file  string
}

// Usage writes the command summary to w.
func Usage(w io.Writer) {
	fmt.Fprint(w, `usage: fitauthctl <command> [-email addr] [-name full name] [-file path] [server flags]

commands:
  create-user     register a new account
  reset-password  set a new password for an existing account
  list-users      print every account
  check-login     verify an email/password pair without signing in
  upload-avatar   upload a profile picture for an account
`)
}

// Run executes the subcommand named by args[0]. Missing values are asked for
// interactively; passwords are always read from the terminal.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		Usage(a.out)
		return ErrUnknownCommand
	}

	opts, err := parseOptions(args[1:])
	if err != nil {
		return err
	}

	switch args[0] {
	case "create-user":
		return a.createUser(ctx, opts)
	case "reset-password":
		return a.resetPassword(ctx, opts)
	case "list-users":
		return a.listUsers(ctx)
	case "check-login":
		return a.checkLogin(ctx, opts)
	case "upload-avatar":
		return a.uploadAvatar(ctx, opts)
	case "help", "-h", "--help":
		Usage(a.out)
		return nil
	default:
		Usage(a.out)
		return fmt.Errorf("%w: %s", ErrUnknownCommand, args[0])
	}
}

func parseOptions(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("fitauthctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&o.email, "email", "", "account email")
	fs.StringVar(&o.name, "name", "", "full name")
	fs.StringVar(&o.file, "file", "", "picture to upload")
	if err := fs.Parse(flagx.FilterArgs(args, commandFlags)); err != nil {
		return o, fmt.Errorf("parse flags: %w", err)
	}
	return o, nil
}

func (a *App) ask(value *string, prompt string) error {
	if *value != "" {
		return nil
	}
	v, err := GetSimpleText(a.in, prompt, a.out)
	if err != nil {
		return err
	}
	*value = v
	return nil
}

func (a *App) createUser(ctx context.Context, o options) error {
	if err := a.ask(&o.name, "Full name"); err != nil {
		return err
	}
	if err := a.ask(&o.email, "Email"); err != nil {
		return err
	}
	password, err := GetNewPassword(a.out)
	if err != nil {
		return err
	}

	res, err := a.svc.Register(ctx, services.RegisterInput{FullName: o.name, Email: o.email, Password: password})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "created %s (%s), verification pending\n", res.User.Email, res.User.ID)
	return nil
}

func (a *App) resetPassword(ctx context.Context, o options) error {
	if err := a.ask(&o.email, "Email"); err != nil {
		return err
	}
	password, err := GetNewPassword(a.out)
	if err != nil {
		return err
	}

	u, err := a.svc.SetPassword(ctx, services.SetPasswordInput{Email: o.email, Password: password})
	if err != nil {
		return describe(err)
	}
	fmt.Fprintf(a.out, "password updated for %s\n", u.Email)
	return nil
}

func (a *App) listUsers(ctx context.Context) error {
	list, err := a.svc.ListUsers(ctx)
	if err != nil {
		return describe(err)
	}

	tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tEMAIL\tNAME\tVERIFIED\tCREATED\tLAST LOGIN")
	for _, u := range list {
		last := "-"
		if u.LastLogin != nil {
			last = u.LastLogin.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			u.ID, u.Email, u.FullName, u.IsVerified, u.CreatedAt.UTC().Format(time.RFC3339), last)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d user(s)\n", len(list))
	return nil
}

func (a *App) checkLogin(ctx context.Context, o options) error {
	u, err := a.authenticate(ctx, &o)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "credentials OK for %s (verified: %t)\n", u.Email, u.IsVerified)
	return nil
}

func (a *App) uploadAvatar(ctx context.Context, o options) error {
	if o.file == "" {
		return ErrNoFile
	}
	data, err := a.read(o.file)
	if err != nil {
		return err
	}

	u, err := a.authenticate(ctx, &o)
	if err != nil {
		return err
	}

	up, err := a.svc.ProfilePictureUploadURL(ctx, u.ID)
	if err != nil {
		return describe(err)
	}

	if err := a.upload(ctx, up.URL, http.DetectContentType(data), data); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "uploaded %d bytes as %s\n", len(data), up.Key)
	return nil
}

func (a *App) authenticate(ctx context.Context, o *options) (*models.PublicUser, error) {
	if err := a.ask(&o.email, "Email"); err != nil {
		return nil, err
	}
	password, err := GetPassword(a.out, "Password")
	if err != nil {
		return nil, err
	}
	u, err := a.svc.CheckCredentials(ctx, services.LoginInput{Email: o.email, Password: password})
	if err != nil {
		return nil, describe(err)
	}
	return u, nil
}

func readFile(name string) ([]byte, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxAvatarSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxAvatarSize {
		return nil, fmt.Errorf("%s: larger than %d bytes", name, maxAvatarSize)
	}
	return data, nil
}

// describe expands validation failures into one line per field.
func describe(err error) error {
	var ve *common.ValidationError
	if !errors.As(err, &ve) || len(ve.Fields) < 2 {
		return err
	}
	msg := ve.Fields[0].Message
	for _, f := range ve.Fields[1:] {
		msg += "\n  " + f.Message
	}
	return fmt.Errorf("%w:\n  %s", common.ErrValidation, msg)
}

package models

import "time"

// Gender values accepted in a fitness profile.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

// Profile holds the optional fitness attributes of a user. Height is in cm,
// weight in kg.
type Profile struct {
	Age           *int     `json:"age,omitempty" validate:"omitempty,min=1,max=150"`
	Gender        string   `json:"gender,omitempty" validate:"omitempty,oneof=male female other"`
	Height        *float64 `json:"height,omitempty" validate:"omitempty,gt=0,lte=300"`
	Weight        *float64 `json:"weight,omitempty" validate:"omitempty,gt=0,lte=500"`
	FitnessGoal   string   `json:"fitnessGoal,omitempty" validate:"omitempty,oneof=lose_weight gain_muscle maintain improve_fitness"`
	ActivityLevel string   `json:"activityLevel,omitempty" validate:"omitempty,oneof=sedentary light moderate active very_active"`
}

// User is a credential store record. It carries secrets (PasswordHash and
// the one-time tokens) and must never be serialized outward; use Public.
type User struct {
	ID                   string
	FullName             string
	Email                string
	PasswordHash         string
	IsVerified           bool
	VerificationToken    *string
	ResetPasswordToken   *string
	ResetPasswordExpires *time.Time
	ProfilePic           *string
	Profile              Profile
	CreatedAt            time.Time
	UpdatedAt            time.Time
	LastLogin            *time.Time
}

// UserPatch is a partial update. Nil fields are left untouched; in particular
// the password digest only changes when PasswordHash is set.
type UserPatch struct {
	FullName             *string
	Profile              *Profile
	ProfilePic           *string
	PasswordHash         *string
	LastLogin            *time.Time
	ResetPasswordToken   *string
	ResetPasswordExpires *time.Time
}

// PublicUser is the sanitized user view returned by the API.
type PublicUser struct {
	ID         string     `json:"id"`
	FullName   string     `json:"fullName"`
	Email      string     `json:"email"`
	IsVerified bool       `json:"isVerified"`
	ProfilePic *string    `json:"profilePic,omitempty"`
	Profile    Profile    `json:"profile"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastLogin  *time.Time `json:"lastLogin,omitempty"`
}

// Public returns the sanitized view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:         u.ID,
		FullName:   u.FullName,
		Email:      u.Email,
		IsVerified: u.IsVerified,
		ProfilePic: u.ProfilePic,
		Profile:    u.Profile,
		CreatedAt:  u.CreatedAt,
		LastLogin:  u.LastLogin,
	}
}

// Clone returns a deep copy of u, so callers of the in-memory store cannot
// mutate stored records.
func (u *User) Clone() *User {
	c := *u
	c.VerificationToken = clonePtr(u.VerificationToken)
	c.ResetPasswordToken = clonePtr(u.ResetPasswordToken)
	c.ResetPasswordExpires = clonePtr(u.ResetPasswordExpires)
	c.ProfilePic = clonePtr(u.ProfilePic)
	c.LastLogin = clonePtr(u.LastLogin)
	c.Profile = u.Profile.Clone()
	return &c
}

// Clone returns a copy of p that shares no pointers with it.
func (p Profile) Clone() Profile {
	p.Age = clonePtr(p.Age)
	p.Height = clonePtr(p.Height)
	p.Weight = clonePtr(p.Weight)
	return p
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

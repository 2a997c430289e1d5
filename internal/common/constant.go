package common

// AuthorizationHeaderName is the HTTP header carrying the session token as
// "Bearer <token>".
const AuthorizationHeaderName = "Authorization"

// BearerScheme is the authorization scheme accepted by the session middleware.
const BearerScheme = "Bearer"

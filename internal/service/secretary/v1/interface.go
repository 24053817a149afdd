package secretary

// Secretary issues and validates admin access tokens.
type Secretary interface {
	NewToken(actor string) (string, error)
	ValidateToken(accessToken string) (string, error)
}

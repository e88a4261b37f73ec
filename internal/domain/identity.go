package domain

// Assertion is a respondent identity extracted from a validated SSO/eID token.
type Assertion struct {
	AuthType AuthType
	Subject  string
	// Secondary carries the Corppass user id; empty for other modes.
	Secondary string
}

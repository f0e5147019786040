// Package validation holds the credential rules and request body schemas
// shared by the HTTP layer and the auth service.
//
// # Credentials
//
// Emails are checked syntactically against local@domain.tld and normalized
// to lower case before storage or lookup:
//
//	email := validation.NormalizeEmail(req.Email)
//	if !validation.IsValidEmail(email) {
//		return auth.ErrInvalidEmail
//	}
//
// Passwords must be at least 8 characters and contain a digit, an upper and
// a lower case letter and one of !@#$%^&*. PasswordViolations lists the rules
// a candidate breaks, which the CLI uses for friendlier output.
//
// # Request Schemas
//
// RegisterSchema and LoginSchema are JSON Schema documents compiled once at
// init. They reject bodies that are not objects or carry non-string fields:
//
//	if err := validation.ValidateRequest(validation.LoginSchema, body); err != nil {
//		// errors.Is(err, validation.ErrMalformedBody)
//	}
package validation

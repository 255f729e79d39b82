// Package log provides the application logger: log/slog with a handler that
// masks credentials and session material before anything is written.
//
// The SecureHandler masks:
//   - attributes whose key names a secret (password, userPasswd, token,
//     cookie, authorization, ...)
//   - string values that look like secrets (JWTs, bearer and basic
//     authorization values)
//   - secret fields embedded in JSON text, such as the token in a login
//     response body that is logged after a failure
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, log.Options{Verbose: true})
//	logger.Error("login failed",
//	    "status", 401,
//	    "body", `{"jwttoken":"eyJ..."}`, // logged as {"jwttoken":"***REDACTED***"}
//	)
package log

// Package errors provides structured, actionable error messages for the
// reactivator CLI and server.
//
// Each registered error has a unique code (e.g., "R103") that maps to a
// category, a short message and, where useful, a suggestion:
//
//	err := errors.New(errors.CodeConfigInvalid).
//	    WithField("server.port").
//	    WithDetail("port must be between 1 and 65535")
//
//	fmt.Print(err.Format())
//	// ERROR R103: Invalid configuration value
//	//
//	//   server.port
//	//
//	//   port must be between 1 and 65535
package errors

// Package user defines the user record and its persistence interface.
//
// Registration, login and session handling live outside this service; the
// packages here only read the record and mutate its Google credential
// fields during token refresh.
package user

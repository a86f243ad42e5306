// Package session ties one operator's gateway, history and grids together.
//
// A Session is created at login or CLI start and closed at logout or exit.
// Its history store is owned by the session alone; closing the session
// clears it.
package session

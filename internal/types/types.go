// Package types holds the data structures shared by the HTTP and storage
// layers. Keeping them here prevents import cycles: handlers and storage
// backends both import types without depending on each other.
package types

// Student is one row of the etudiants table.
//
// Field order matches the column order used by every SELECT and RETURNING
// clause (id, nom, prenom, adresse); the postgres backend scans rows by
// position into this struct.
type Student struct {
	ID        int64   `json:"id"`
	LastName  string  `json:"last_name"`
	FirstName *string `json:"first_name"`
	Address   *string `json:"address"`
}

// StudentPayload is the JSON body accepted by create and update.
//
// Every field is a pointer. A key that is absent from the body, or present
// with a JSON null, decodes to nil, and nil is written to the store as SQL
// NULL. Update therefore replaces all three columns: omitting first_name in
// a PATCH clears it rather than keeping the stored value.
//
// validate tags are checked by go-playground/validator before any write.
// last_name mirrors the NOT NULL column, so a body without it is rejected
// with 400 instead of reaching the store.
type StudentPayload struct {
	LastName  *string `json:"last_name"  validate:"required,max=50"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	Address   *string `json:"address"    validate:"omitempty,max=100"`
}

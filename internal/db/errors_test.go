package db

import (
	"errors"
	"testing"

	"github.com/surrealdb/surrealdb.go"
)

func TestWrapQueryError(t *testing.T) {
	if wrapQueryError(nil) != nil {
		t.Fatal("nil should stay nil")
	}

	conflict := &surrealdb.QueryError{Message: "Transaction conflict: Resource busy"}
	if err := wrapQueryError(conflict); !errors.Is(err, ErrTransactionConflict) {
		t.Errorf("wrapQueryError(conflict) = %v, want ErrTransactionConflict", err)
	}

	other := errors.New("connection closed")
	if err := wrapQueryError(other); err != other {
		t.Errorf("wrapQueryError(other) = %v, want unchanged", err)
	}
}

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lalith-99/familyhub/internal/apperr"
	"github.com/lalith-99/familyhub/internal/docstore"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields under their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the struct's validate tags.
func Validate(v any) error {
	return validate.Struct(v)
}

// ValidationMessage describes the first failed rule of a Validate error in
// words a user can act on.
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid input"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}

// DecodeUser parses a users document. A body without uid takes it from
// the key; a body whose uid disagrees with the key is malformed.
func DecodeUser(doc *docstore.Document) (*UserRecord, error) {
	var u UserRecord
	if err := decode(doc, &u); err != nil {
		return nil, err
	}
	if u.UID == "" {
		u.UID = doc.Key
	}
	if u.UID != doc.Key {
		return nil, malformed(doc, fmt.Errorf("uid %q does not match key", u.UID))
	}
	if err := validate.Struct(&u); err != nil {
		return nil, malformed(doc, err)
	}
	return &u, nil
}

// DecodeFamily parses a families document.
func DecodeFamily(doc *docstore.Document) (*FamilyRecord, error) {
	var f FamilyRecord
	if err := decode(doc, &f); err != nil {
		return nil, err
	}
	f.ID = doc.Key
	if f.Members == nil {
		f.Members = []string{}
	}
	if err := validate.Struct(&f); err != nil {
		return nil, malformed(doc, err)
	}
	return &f, nil
}

func DecodeCredential(doc *docstore.Document) (*Credential, error) {
	var c Credential
	if err := decode(doc, &c); err != nil {
		return nil, err
	}
	if err := validate.Struct(&c); err != nil {
		return nil, malformed(doc, err)
	}
	return &c, nil
}

func DecodeTask(doc *docstore.Document) (*Task, error) {
	var t Task
	if err := decode(doc, &t); err != nil {
		return nil, err
	}
	t.ID = doc.Key
	if err := validate.Struct(&t); err != nil {
		return nil, malformed(doc, err)
	}
	return &t, nil
}

func DecodeInventoryItem(doc *docstore.Document) (*InventoryItem, error) {
	var item InventoryItem
	if err := decode(doc, &item); err != nil {
		return nil, err
	}
	item.ID = doc.Key
	if err := validate.Struct(&item); err != nil {
		return nil, malformed(doc, err)
	}
	return &item, nil
}

func DecodeShoppingItem(doc *docstore.Document) (*ShoppingItem, error) {
	var item ShoppingItem
	if err := decode(doc, &item); err != nil {
		return nil, err
	}
	item.ID = doc.Key
	if err := validate.Struct(&item); err != nil {
		return nil, malformed(doc, err)
	}
	return &item, nil
}

// decode maps the document body onto out through JSON, so a field of the
// wrong type fails here instead of turning into a zero value.
func decode(doc *docstore.Document, out any) error {
	raw, err := json.Marshal(doc.Data)
	if err != nil {
		return malformed(doc, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return malformed(doc, err)
	}
	return nil
}

func malformed(doc *docstore.Document, cause error) error {
	return apperr.Wrap(
		apperr.CodeMalformedDocument,
		fmt.Sprintf("stored record %s/%s is malformed", doc.Collection, doc.Key),
		cause,
	)
}

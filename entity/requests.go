package entity

import (
	"net/http"

	"groupgate/lib/validate"
)

// IssueRequest is the payload of the issue-link action. AccessCode is
// normally left empty and generated server-side; when set, a prior active
// link for the same code is superseded instead of duplicated.
type IssueRequest struct {
	GroupId    int64  `json:"group_id" validate:"required"`
	AccessCode string `json:"access_code" validate:"omitempty,alphanum,min=4,max=32"`
	Price      int64  `json:"price" validate:"omitempty,gte=0"`
	Email      string `json:"email" validate:"omitempty,email"`
	ExternalId string `json:"external_id" validate:"omitempty"`
	Note       string `json:"note" validate:"omitempty"`
	Receipt    string `json:"receipt" validate:"omitempty"`
}

func (r *IssueRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// CreditRequest is the payload of the add-credits action.
type CreditRequest struct {
	ResellerCode string `json:"reseller_code" validate:"required"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
}

func (r *CreditRequest) Bind(_ *http.Request) error {
	return validate.Struct(r)
}

// DeleteRequest selects between panel-only removal and permanent delete.
type DeleteRequest struct {
	Permanent bool `json:"permanent"`
}

func (r *DeleteRequest) Bind(_ *http.Request) error {
	return nil
}

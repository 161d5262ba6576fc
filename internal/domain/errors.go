package domain

import "errors"

var (
	// ErrNotFound signals a missing or no longer purchasable entity.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSelector signals a range selector outside the catalog's bucket list.
	ErrInvalidSelector = errors.New("invalid range selector")
	// ErrNoSearchCriteria signals a search request with no filter at all.
	ErrNoSearchCriteria = errors.New("no search criteria")
	// ErrInvalidPagination signals an unparseable or negative page/perPage value.
	ErrInvalidPagination = errors.New("invalid pagination")
	// ErrInvalidPolygon signals a polygon search without vertices.
	ErrInvalidPolygon = errors.New("invalid polygon")
	// ErrMalformedUpload signals a bulk upload that could not be parsed.
	ErrMalformedUpload = errors.New("malformed upload")
	// ErrDuplicateID signals a bulk upload row whose id already exists.
	ErrDuplicateID = errors.New("duplicate id")
)

package lineage

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// ErrorKind classifies the errors raised by the builders
type ErrorKind string

const (
	KindInvalidParameter           ErrorKind = "InvalidParameter"
	KindNotAuthorized              ErrorKind = "NotAuthorized"
	KindMultipleRelationshipsFound ErrorKind = "MultipleRelationshipsFound"
	KindEndpointMismatch           ErrorKind = "EndpointMismatch"
	KindElementNotFound            ErrorKind = "ElementNotFound"
)

const metaKind = "error_kind"

// NewInvalidParameterError reports a missing or blank argument.
func NewInvalidParameterError(method string, parameter string) error {
	return httperror.NewHTTPErrorf(http.StatusBadRequest, "%s: parameter '%s' is required", method, parameter).
		AddMetaValue(metaKind, string(KindInvalidParameter)).
		AddMetaValue("method", method).
		AddMetaValue("parameter", parameter)
}

// NewNotAuthorizedError reports an element outside the caller's supported zones.
func NewNotAuthorizedError(method string, guid string, zones []string) error {
	return httperror.NewHTTPErrorf(http.StatusForbidden, "%s: element %s is not in a supported zone", method, guid).
		AddMetaValue(metaKind, string(KindNotAuthorized)).
		AddMetaValue("method", method).
		AddMetaValue("guid", guid).
		AddMetaValue("zones", strings.Join(zones, ","))
}

// NewMultipleRelationshipsFoundError reports more than one match where at most one was expected.
func NewMultipleRelationshipsFoundError(method string, guid string, relationshipType string, count int) error {
	return httperror.NewHTTPErrorf(http.StatusConflict, "%s: found %d %s relationships for %s, expected at most one", method, count, relationshipType, guid).
		AddMetaValue(metaKind, string(KindMultipleRelationshipsFound)).
		AddMetaValue("method", method).
		AddMetaValue("guid", guid).
		AddMetaValue("relationship_type", relationshipType).
		AddMetaValue("count", strconv.Itoa(count))
}

// NewEndpointMismatchError reports an origin guid that matches neither end of a relationship.
func NewEndpointMismatchError(method string, originGUID string, relationshipGUID string) error {
	return httperror.NewHTTPErrorf(http.StatusInternalServerError, "%s: %s is not an end of relationship %s", method, originGUID, relationshipGUID).
		AddMetaValue(metaKind, string(KindEndpointMismatch)).
		AddMetaValue("method", method).
		AddMetaValue("guid", originGUID).
		AddMetaValue("relationship_guid", relationshipGUID)
}

// NewElementNotFoundError reports a root element the repository does not hold.
func NewElementNotFoundError(method string, guid string, typeName string) error {
	return httperror.NewHTTPErrorf(http.StatusNotFound, "%s: %s %s not found", method, typeName, guid).
		AddMetaValue(metaKind, string(KindElementNotFound)).
		AddMetaValue("method", method).
		AddMetaValue("guid", guid)
}

// KindOf returns the ErrorKind of err, or "" for repository and other errors.
func KindOf(err error) ErrorKind {
	if err == nil || !httperror.IsHTTPError(err) {
		return ""
	}
	he := httperror.ToHTTPError(err)
	if he == nil || he.Meta == nil {
		return ""
	}
	kind, _ := he.Meta[metaKind].(string)
	return ErrorKind(kind)
}

func IsInvalidParameter(err error) bool { return KindOf(err) == KindInvalidParameter }

func IsNotAuthorized(err error) bool { return KindOf(err) == KindNotAuthorized }

func IsMultipleRelationshipsFound(err error) bool {
	return KindOf(err) == KindMultipleRelationshipsFound
}

func IsEndpointMismatch(err error) bool { return KindOf(err) == KindEndpointMismatch }

func IsElementNotFound(err error) bool { return KindOf(err) == KindElementNotFound }

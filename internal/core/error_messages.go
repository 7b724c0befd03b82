package core

// # Error Codes Reference
//
// User-facing messages carry a code that can be quoted when reporting a
// problem. Codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Not found: the requested record does not exist
//	        Sentinel: store.ErrNotFound
//
//	DB002 - Busy: the store is locked by another process (an ETL run)
//	        Sentinel: store.ErrBusy. Patterns: "database is locked"
//
//	DB003 - Connection refused: the store cannot be reached
//	        Patterns: "connection refused"
//
//	DB004 - Timeout: the query took too long
//	        Patterns: "context deadline exceeded", "timeout"
//
// # Table and report Errors (TBL001-TBL099)
//
//	TBL001 - Unknown table. Sentinel: ErrUnknownTable
//	TBL002 - Unknown report. Sentinel: ErrUnknownReport
//	TBL003 - Invalid filter value. Sentinel: ErrInvalidFilter
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - Too many exports in progress. Sentinel: ErrTooManyExports
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Too many requests. Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Anything else maps to ERR000; the technical error is only logged.

import (
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/iefreport/internal/store"
)

// UserMessage is an error as shown to users.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorSentinel maps a sentinel error to its message.
type errorSentinel struct {
	target error
	msg    UserMessage
}

// errorPattern maps a substring of a driver error to its message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var (
	msgNotFound = UserMessage{
		Message: "Enregistrement introuvable",
		Action:  "Vérifiez le lien ou revenez à la liste",
		Code:    "DB001",
	}
	msgBusy = UserMessage{
		Message: "La base de données est occupée",
		Action:  "Un chargement est peut-être en cours, réessayez dans quelques instants",
		Code:    "DB002",
	}
	msgTimeout = UserMessage{
		Message: "La requête a pris trop de temps",
		Action:  "Affinez les filtres ou réessayez plus tard",
		Code:    "DB004",
	}
)

var errorSentinels = []errorSentinel{
	{target: store.ErrNotFound, msg: msgNotFound},
	{target: store.ErrBusy, msg: msgBusy},
	{
		target: ErrUnknownTable,
		msg: UserMessage{
			Message: "Table inconnue",
			Action:  "Choisissez une table depuis le menu",
			Code:    "TBL001",
		},
	},
	{
		target: ErrUnknownReport,
		msg: UserMessage{
			Message: "Rapport inconnu",
			Action:  "Choisissez un rapport depuis la page des rapports",
			Code:    "TBL002",
		},
	},
	{
		target: ErrInvalidFilter,
		msg: UserMessage{
			Message: "Valeur de filtre invalide",
			Action:  "Réinitialisez les filtres et réessayez",
			Code:    "TBL003",
		},
	},
	{
		target: ErrTooManyExports,
		msg: UserMessage{
			Message: "Trop d'exports en cours",
			Action:  "Patientez quelques instants avant de relancer l'export",
			Code:    "EXP001",
		},
	},
}

var errorPatterns = []errorPattern{
	{pattern: "database is locked", msg: msgBusy},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Impossible de joindre la base de données",
			Action:  "Réessayez dans quelques instants",
			Code:    "DB003",
		},
	},
	{pattern: "context deadline exceeded", msg: msgTimeout},
	{pattern: "timeout", msg: msgTimeout},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Trop de requêtes",
			Action:  "Patientez un moment avant de réessayer",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "Une erreur inattendue est survenue",
	Action:  "Réessayez ou contactez l'administrateur",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-facing message. Sentinels
// are checked first with errors.Is, then the error text is matched
// case-insensitively against known patterns.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, es := range errorSentinels {
		if errors.Is(err, es.target) {
			return es.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

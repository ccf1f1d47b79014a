package api

import "github.com/nicksnyder/go-i18n/v2/i18n"

var (
	msgMatchNotFound = &i18n.Message{
		ID:    "api.match.notFound",
		Other: "Match {{.ID}} not found",
	}
	msgPlayerNotFound = &i18n.Message{
		ID:    "api.player.notFound",
		Other: "Player {{.GUID}} not found",
	}
	msgNotFound = &i18n.Message{
		ID:    "api.notFound",
		Other: "Not found",
	}
	msgInvalidLimit = &i18n.Message{
		ID:    "api.invalidLimit",
		Other: "`{{.Limit}}` is not a valid limit",
	}
	msgInvalidRequest = &i18n.Message{
		ID:    "api.invalidRequest",
		Other: "Invalid {{.Field}}: {{.Reason}}",
	}
	msgInvalidJob = &i18n.Message{
		ID:    "api.invalidJob",
		Other: "Invalid job: {{.Reason}}",
	}
	msgInternalError = &i18n.Message{
		ID:    "api.internalError",
		Other: "Something went wrong, please try again later",
	}
)

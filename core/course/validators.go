package course

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/learntube/backend/core"
)

var (
	youtubeIDTag  = "youtubeid"
	youtubeIDText = "must be a YouTube video id or URL"

	youtubeIDRegex  = regexp.MustCompile(`^[\w-]{11}$`)
	youtubeURLRegex = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|shorts/|watch\?v=|&v=)([^#&?/]*).*`)
)

// InitValidators registers the course validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(youtubeIDTag, youtubeIDValidation)
	core.RegisterCustomTranslation(validate, translator, youtubeIDTag, youtubeIDText)
}

// ExtractYoutubeID returns the video id of a YouTube URL, or s itself when it already is an id.
func ExtractYoutubeID(s string) (string, bool) {
	if youtubeIDRegex.MatchString(s) {
		return s, true
	}
	if m := youtubeURLRegex.FindStringSubmatch(s); m != nil && youtubeIDRegex.MatchString(m[2]) {
		return m[2], true
	}
	return "", false
}

func youtubeIDValidation(fl validator.FieldLevel) bool {
	return youtubeIDRegex.MatchString(fl.Field().String())
}

package providers

import "errors"

var errNoChoices = errors.New("inference: provider returned no choices")

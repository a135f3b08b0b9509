package output

import (
	"encoding/json"
	"io"

	"github.com/pvannes/gitpulse/internal/model"
)

// JSONFormatter renders the feed as JSON, one document for the whole list.
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) Format(list []*model.Notification, w io.Writer) error {
	encoder := json.NewEncoder(w)
	if f.Pretty {
		encoder.SetIndent("", "  ")
	}
	if list == nil {
		list = []*model.Notification{}
	}
	return encoder.Encode(list)
}

package api

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// Tool is a conversion exposed as one POST route.
type Tool struct {
	// Route is the path of the route, like /pdf_to_jpg.
	Route string
	// Name is the tool name on the remote service.
	Name string
	// Parameters maps the form fields to the tool options. A returned error
	// is a form problem reported to the caller.
	Parameters func(form url.Values) (map[string]any, error)
}

// PDF to JPG modes.
const (
	PDFToJPGModePages   = "pages"
	PDFToJPGModeExtract = "extract"
)

// PDFToJPG renders every page (pages mode) or pulls the embedded images
// (extract mode) of the documents.
var PDFToJPG = Tool{
	Route:      "/pdf_to_jpg",
	Name:       "pdfjpg",
	Parameters: enumParameter("mode", "pdfjpg_mode", PDFToJPGModePages, PDFToJPGModePages, PDFToJPGModeExtract),
}

// DefaultTools are the tools served when none are configured.
var DefaultTools = []Tool{PDFToJPG}

// enumParameter forwards an optional form field restricted to a set of values.
func enumParameter(field, option, def string, allowed ...string) func(url.Values) (map[string]any, error) {
	return func(form url.Values) (map[string]any, error) {
		v := form.Get(field)
		if v == "" {
			v = def
		}

		if !slices.Contains(allowed, v) {
			return nil, fmt.Errorf("%s: value %q is not one of %s", field, v, strings.Join(allowed, ", "))
		}

		return map[string]any{option: v}, nil
	}
}

package chi

import (
	"net/http"
	"strconv"
	"strings"

	searchuc "github.com/studycat-io/studycat/internal/usecase/search"
)

// searchParamsFromQuery decodes the shared search query parameters.
// Multi-valued filters take comma-separated value sets.
func searchParamsFromQuery(r *http.Request) *searchuc.Params {
	q := r.URL.Query()
	p := &searchuc.Params{
		Query:             q.Get("q"),
		Lang:              q.Get("lang"),
		Name:              q.Get("name"),
		TypeOfData:        splitCSV(q.Get("typeOfData")),
		AccessCriteria:    splitCSV(q.Get("accessCriteria")),
		ControlledOnly:    boolParam(q.Get("controlledOnly")),
		AssayType:         splitCSV(q.Get("assayType")),
		Tissue:            splitCSV(q.Get("tissue")),
		Platform:          splitCSV(q.Get("platform")),
		Tumor:             boolParam(q.Get("tumor")),
		DiseaseCodePrefix: splitCSV(q.Get("diseaseCode")),
		ParticipantMin:    floatParam(q.Get("participantMin")),
		ParticipantMax:    floatParam(q.Get("participantMax")),
		ReleasedFrom:      q.Get("releasedFrom"),
		ReleasedTo:        q.Get("releasedTo"),
		PublishedFrom:     q.Get("publishedFrom"),
		PublishedTo:       q.Get("publishedTo"),
		Sort:              q.Get("sort"),
		Desc:              q.Get("order") == "desc",
		From:              intParam(q.Get("from")),
		Size:              intParam(q.Get("size")),
		WithFacets:        q.Get("facets") == "true",
	}
	return p
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func boolParam(s string) *bool {
	switch s {
	case "true":
		v := true
		return &v
	case "false":
		v := false
		return &v
	default:
		return nil
	}
}

func floatParam(s string) *float64 {
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func intParam(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

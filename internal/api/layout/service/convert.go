package layoutService

import (
	"os"

	"DocLayout/internal/api/layout"
	"DocLayout/pkg/detector"
	"DocLayout/pkg/log"
)

// readSidecar loads a saved result file back into plain JSON values.
func readSidecar(path string) (interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// convertResult builds the flat result map used when the sidecar cannot be
// read back. Values that cannot be encoded, such as NaN scores, yield an error
// placeholder instead.
func (s *layoutService) convertResult(requestID string, page detector.PageResult) interface{} {
	m := page.Map()
	if _, err := json.Marshal(m); err != nil {
		s.log.WithFields(log.Fields{
			log.RequestIDKey: requestID,
			"error":          err.Error(),
		}).Error("Error converting result to dict")
		return map[string]string{"error": layout.ErrConvertResult.Error()}
	}
	return m
}

func (s *layoutService) persistedData(requestID string, jsonPath string, page detector.PageResult) interface{} {
	data, err := readSidecar(jsonPath)
	if err == nil {
		return data
	}

	s.log.WithFields(log.Fields{
		log.RequestIDKey: requestID,
		"json_path":      jsonPath,
		"error":          err.Error(),
	}).Warn("Could not read JSON file")

	return s.convertResult(requestID, page)
}

func countBoxes(pages []detector.PageResult) int {
	n := 0
	for _, p := range pages {
		n += len(p.Boxes)
	}
	return n
}

package detector

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"os"
)

type Box struct {
	ClsID      int        `json:"cls_id"`
	Label      string     `json:"label"`
	Score      float64    `json:"score"`
	Coordinate [4]float64 `json:"coordinate"`
}

// PageResult is the outcome for a single image or PDF page. Page holds the
// decoded page when the backend had one; Visual holds an already annotated
// JPEG returned by a remote backend.
type PageResult struct {
	InputPath string
	PageIndex *int
	Width     int
	Height    int
	Boxes     []Box
	Page      image.Image
	Visual    []byte
}

type ResultBody struct {
	InputPath string `json:"input_path"`
	PageIndex *int   `json:"page_index"`
	Boxes     []Box  `json:"boxes"`
}

type ResultJSON struct {
	Res ResultBody `json:"res"`
}

func (r *PageResult) body() ResultBody {
	boxes := r.Boxes
	if boxes == nil {
		boxes = []Box{}
	}
	return ResultBody{
		InputPath: r.InputPath,
		PageIndex: r.PageIndex,
		Boxes:     boxes,
	}
}

// JSON is the serializable view of the result, the same document SaveToJSON
// writes.
func (r *PageResult) JSON() ResultJSON {
	return ResultJSON{Res: r.body()}
}

// Map converts the result field by field into a flat map without going
// through the JSON encoder.
func (r *PageResult) Map() map[string]interface{} {
	out := map[string]interface{}{
		"input_path": r.InputPath,
	}
	if r.PageIndex != nil {
		out["page_index"] = *r.PageIndex
	} else {
		out["page_index"] = nil
	}

	boxes := make([]map[string]interface{}, 0, len(r.Boxes))
	for _, b := range r.Boxes {
		coords := make([]float64, len(b.Coordinate))
		copy(coords, b.Coordinate[:])
		boxes = append(boxes, map[string]interface{}{
			"cls_id":     b.ClsID,
			"label":      b.Label,
			"score":      b.Score,
			"coordinate": coords,
		})
	}
	out["boxes"] = boxes

	return out
}

func (r *PageResult) SaveToJSON(path string) error {
	data, err := json.MarshalIndent(r.JSON(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (r *PageResult) SaveToImg(path string) error {
	if len(r.Visual) > 0 {
		return os.WriteFile(path, r.Visual, 0o644)
	}
	if r.Page == nil {
		return ErrNoPageImage
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Annotate(r.Page, r.Boxes), &jpeg.Options{Quality: 95}); err != nil {
		return fmt.Errorf("encode annotated page: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

package detector

import (
	"math"
	"sort"
)

const (
	nmsIoUSameClass = 0.6
	nmsIoUDiffClass = 0.98
)

// decodeRows turns the flat [N, cols] detection output into boxes. Each row
// starts with cls_id, score, x1, y1, x2, y2; extra columns are ignored.
func decodeRows(data []float32, rows, cols int, labels []string) []Box {
	if cols < 6 || rows <= 0 {
		return nil
	}
	if len(data) < rows*cols {
		rows = len(data) / cols
	}

	boxes := make([]Box, 0, rows)
	for i := 0; i < rows; i++ {
		row := data[i*cols : (i+1)*cols]
		clsID := int(row[0])
		if clsID < 0 {
			continue
		}

		label := ""
		if clsID < len(labels) {
			label = labels[clsID]
		}

		boxes = append(boxes, Box{
			ClsID: clsID,
			Label: label,
			Score: float64(row[1]),
			Coordinate: [4]float64{
				float64(row[2]), float64(row[3]),
				float64(row[4]), float64(row[5]),
			},
		})
	}
	return boxes
}

// filterBoxes keeps boxes scoring strictly above the threshold, clips the rest to the
// page and discards the ones left with no area. Output is sorted by score.
func filterBoxes(boxes []Box, width, height int, threshold float64) []Box {
	out := make([]Box, 0, len(boxes))
	for _, b := range boxes {
		if b.Score <= threshold {
			continue
		}
		b.Coordinate = clip(b.Coordinate, width, height)
		if b.Coordinate[2] <= b.Coordinate[0] || b.Coordinate[3] <= b.Coordinate[1] {
			continue
		}
		out = append(out, b)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

func clip(c [4]float64, width, height int) [4]float64 {
	w, h := float64(width), float64(height)
	return [4]float64{
		math.Max(0, math.Min(c[0], w)),
		math.Max(0, math.Min(c[1], h)),
		math.Max(0, math.Min(c[2], w)),
		math.Max(0, math.Min(c[3], h)),
	}
}

// layoutNMS expects boxes sorted by descending score. A kept box suppresses
// later boxes of the same class above nmsIoUSameClass and boxes of any other
// class above nmsIoUDiffClass.
func layoutNMS(boxes []Box) []Box {
	kept := make([]Box, 0, len(boxes))
	suppressed := make([]bool, len(boxes))

	for i := range boxes {
		if suppressed[i] {
			continue
		}
		kept = append(kept, boxes[i])

		for j := i + 1; j < len(boxes); j++ {
			if suppressed[j] {
				continue
			}
			limit := nmsIoUDiffClass
			if boxes[i].ClsID == boxes[j].ClsID {
				limit = nmsIoUSameClass
			}
			if iou(boxes[i].Coordinate, boxes[j].Coordinate) >= limit {
				suppressed[j] = true
			}
		}
	}
	return kept
}

// iou uses the inclusive pixel convention, so touching edges overlap by one.
func iou(a, b [4]float64) float64 {
	x1 := math.Max(a[0], b[0])
	y1 := math.Max(a[1], b[1])
	x2 := math.Min(a[2], b[2])
	y2 := math.Min(a[3], b[3])

	inter := math.Max(0, x2-x1+1) * math.Max(0, y2-y1+1)
	areaA := (a[2] - a[0] + 1) * (a[3] - a[1] + 1)
	areaB := (b[2] - b[0] + 1) * (b[3] - b[1] + 1)

	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func postprocess(boxes []Box, width, height int, opts PredictOptions) []Box {
	boxes = filterBoxes(boxes, width, height, opts.threshold())
	if opts.LayoutNMS {
		boxes = layoutNMS(boxes)
	}
	return boxes
}

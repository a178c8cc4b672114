package feed

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ReadCategories reads the newline-separated class name list. Windows CRLF
// line endings are tolerated and blank lines are dropped.
func ReadCategories(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	raw := strings.Split(string(b), "\n")
	var names []string
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if l != "" {
			names = append(names, l)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("categories file %s contains no class names", path)
	}
	return names, nil
}

// LoadAnnotations reads a CSV annotation list with records of the form
//
//	image_path,x1,y1,x2,y2,class_name
//
// into index-aligned path and label slices. Corner coordinates are absolute
// pixels in the original image.
func LoadAnnotations(path string) ([]string, []Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("parse annotations %s: %w", path, err)
	}

	paths := make([]string, 0, len(records))
	labels := make([]Label, 0, len(records))
	for i, rec := range records {
		var c [4]float32
		bad := false
		for j := 0; j < 4; j++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[j+1]), 32)
			if err != nil {
				bad = true
				break
			}
			c[j] = float32(v)
		}
		if bad {
			return nil, nil, fmt.Errorf("annotations %s: record %d has non-numeric corners", path, i+1)
		}
		paths = append(paths, strings.TrimSpace(rec[0]))
		labels = append(labels, Label{
			Box:  BoxFromCorners(c[0], c[1], c[2], c[3]),
			Name: strings.TrimSpace(rec[5]),
		})
	}
	return paths, labels, nil
}

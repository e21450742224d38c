package scans

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/pkg/errors"
)

// A Report counts the annotated points of every image, per
// annotator.
type Report struct {
	Users []string

	// UserFiles is the number of annotation files of each
	// user.
	UserFiles map[string]int

	Rows []Row
}

// A Row holds the annotation counts of one image.
type Row struct {
	File string

	// Points has one count per user, in Report.Users order.
	Points []int
}

// Annotated gets the number of users that annotated at
// least one point.
func (r *Row) Annotated() int {
	var res int
	for _, p := range r.Points {
		if p > 0 {
			res++
		}
	}
	return res
}

// CountAnnotations builds a report for the images matching
// imagesGlob and the annotator folders matching usersGlob.
//
// A user is named by the part of its folder name after the
// last "-", e.g. "manual-alice" is "alice". The number of
// points a user annotated in an image "<name>.wrl" is the
// number of lines in "<folder>/<name>.raw".
//
// Rows are sorted by the number of annotators, then by
// file name.
func CountAnnotations(imagesGlob, usersGlob string) (*Report, error) {
	images, err := doublestar.Glob(imagesGlob)
	if err != nil {
		return nil, errors.Wrap(err, "count annotations")
	}
	folders, err := doublestar.Glob(usersGlob)
	if err != nil {
		return nil, errors.Wrap(err, "count annotations")
	}

	userFolders := map[string]string{}
	report := &Report{UserFiles: map[string]int{}}
	for _, folder := range folders {
		if info, err := os.Stat(folder); err != nil || !info.IsDir() {
			continue
		}
		name := filepath.Base(folder)
		user := name[strings.LastIndex(name, "-")+1:]
		userFolders[user] = folder
		report.Users = append(report.Users, user)
	}
	sort.Strings(report.Users)

	points := map[string]map[string]int{}
	for _, user := range report.Users {
		raws, err := filepath.Glob(filepath.Join(userFolders[user], "*.raw"))
		if err != nil {
			return nil, errors.Wrap(err, "count annotations")
		}
		points[user] = map[string]int{}
		for _, raw := range raws {
			n, err := countLines(raw)
			if err != nil {
				return nil, errors.Wrap(err, "count annotations")
			}
			points[user][baseName(raw)] = n
		}
		report.UserFiles[user] = len(raws)
	}

	files := make([]string, 0, len(images))
	for _, image := range images {
		files = append(files, baseName(image))
	}
	sort.Strings(files)
	for _, file := range files {
		row := Row{File: file, Points: make([]int, len(report.Users))}
		for i, user := range report.Users {
			row.Points[i] = points[user][file]
		}
		report.Rows = append(report.Rows, row)
	}
	sort.SliceStable(report.Rows, func(i, j int) bool {
		ni, nj := report.Rows[i].Annotated(), report.Rows[j].Annotated()
		if ni != nj {
			return ni < nj
		}
		return report.Rows[i].File < report.Rows[j].File
	})
	return report, nil
}

// WriteCSV writes the report with a header row. Each row
// holds the file name, the point count of every user and
// the number of annotators.
func (r *Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append(append([]string{"file"}, r.Users...), "annotators")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, row := range r.Rows {
		record := []string{row.File}
		for _, p := range row.Points {
			record = append(record, strconv.Itoa(p))
		}
		record = append(record, strconv.Itoa(row.Annotated()))
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func baseName(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	var n int
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

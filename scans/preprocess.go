package scans

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/facescan/facemesh/wrl"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Folders that Preprocess sorts scans into.
const (
	FacesDir = "probably-faces"
	EarsDir  = "probably-ears"
)

// FacesPerStudy is the number of scans of each study that
// are taken to be faces. Deliveries list face captures
// before ear captures.
const FacesPerStudy = 2

// Preprocess moves every ".wrl" and ".jpg" file below folder
// into workDir, renaming it to "<STUDY>-<name>" where STUDY
// is the upper-cased name of the file's grandparent folder:
//
//     <folder>/.../oxf203/130222034902/130222034902.jpg
//     -> <workDir>/OXF203-130222034902.jpg
//
// Files of each study are then sorted by name; the first
// FacesPerStudy go to FacesDir and the rest to EarsDir. The
// texture url of each WRL file with a matching JPEG is fixed
// on the way.
//
// It returns the WRL files whose texture could not be fixed.
func Preprocess(ctx context.Context, folder, workDir string, log *zap.Logger) ([]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	var sources []string
	err := filepath.Walk(folder, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !info.IsDir() && (ext == ".wrl" || ext == ".jpg") {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "preprocess")
	}

	for _, dir := range []string{workDir, filepath.Join(workDir, FacesDir), filepath.Join(workDir, EarsDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.Wrap(err, "preprocess")
		}
	}

	studies := map[string][]string{}
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		study, name := StudyName(source)
		if err := os.Rename(source, filepath.Join(workDir, name)); err != nil {
			return nil, errors.Wrap(err, "preprocess")
		}
		studies[study] = append(studies[study], name)
		log.Debug("renamed scan file", zap.String("source", source), zap.String("name", name))
	}

	var notFixed []string
	for study, names := range studies {
		sort.Strings(names)
		for _, name := range names {
			if !strings.HasSuffix(name, ".wrl") {
				continue
			}
			jpg := strings.TrimSuffix(name, ".wrl") + ".jpg"
			if _, err := os.Stat(filepath.Join(workDir, jpg)); err != nil {
				continue
			}
			if _, err := wrl.FixTextureURL(filepath.Join(workDir, name)); err != nil {
				log.Warn("texture not fixed", zap.String("name", name), zap.Error(err))
				notFixed = append(notFixed, name)
			}
		}
		for i, name := range names {
			dest := EarsDir
			if i < FacesPerStudy {
				dest = FacesDir
			}
			if err := os.Rename(filepath.Join(workDir, name), filepath.Join(workDir, dest, name)); err != nil {
				return notFixed, errors.Wrap(err, "preprocess")
			}
		}
		log.Info("sorted study", zap.String("study", study), zap.Int("files", len(names)))
	}
	sort.Strings(notFixed)
	return notFixed, nil
}

// StudyName computes the study of a scan file and its new
// name.
func StudyName(path string) (study, name string) {
	study = strings.ToUpper(filepath.Base(filepath.Dir(filepath.Dir(path))))
	return study, study + "-" + filepath.Base(path)
}

package scans

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/facescan/facemesh/wrl"
	"github.com/google/shlex"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Landmark files of the face models shipped with Register.
const (
	ModelLandmarks          = "MnFMdl.lnd"
	SymmetricModelLandmarks = "MnFMdl-14.lnd"
)

// Files written by Register into its working directory.
const (
	registeredWRL     = "Registered3DER.wrl"
	registeredTexture = "isoRegistered3D.jpg"
	registeredRGB     = "triRegistered3D.rgb"
)

// A Pair is a scan with its landmark annotation.
type Pair struct {
	WRL string
	LND string
}

// ListPairs finds the "*.wrl" files in wrlDir with an
// equally named ".lnd" file in lndDir. Paths are absolute.
func ListPairs(wrlDir, lndDir string) ([]Pair, error) {
	wrlDir, err := filepath.Abs(wrlDir)
	if err != nil {
		return nil, err
	}
	lndDir, err = filepath.Abs(lndDir)
	if err != nil {
		return nil, err
	}
	paths, err := filepath.Glob(filepath.Join(wrlDir, "*.wrl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var pairs []Pair
	for _, path := range paths {
		lnd := filepath.Join(lndDir, baseName(path)+".lnd")
		if _, err := os.Stat(lnd); err == nil {
			pairs = append(pairs, Pair{WRL: path, LND: lnd})
		}
	}
	return pairs, nil
}

// RegisterArgs builds the model options of a Register
// call. If lndRef is empty, the landmarks of the chosen
// model are used.
func RegisterArgs(symmetric bool, lndRef string) string {
	if lndRef == "" {
		lndRef = ModelLandmarks
		if symmetric {
			lndRef = SymmetricModelLandmarks
		}
	}
	args := "-GL " + shellQuote(lndRef)
	if symmetric {
		args += " -SYM"
	}
	return args
}

// A Registrar runs the external Register program on many
// scans.
type Registrar struct {
	// Program is the command line that starts Register. It
	// is split like a shell would split it.
	Program string

	// Args holds extra options, e.g. from RegisterArgs.
	Args string

	OutDir string

	// Workers limits the number of concurrent Register
	// processes. If 0, runtime.NumCPU() is used.
	Workers int

	Logger *zap.Logger
}

// A Result reports the registration of one scan.
type Result struct {
	Pair   Pair
	Output []byte
	Err    error
}

// RegisterAll registers every pair, writing for a scan
// "<base>.wrl" the files "<base>ER.wrl", "iso<base>.jpg" and
// "tri<base>.rgb" to r.OutDir.
//
// There is one Result per pair, in order. Pairs that were
// not started because ctx was done get ctx.Err().
func (r *Registrar) RegisterAll(ctx context.Context, pairs []Pair) ([]Result, error) {
	program, err := shlex.Split(r.Program)
	if err != nil {
		return nil, errors.Wrap(err, "parse program")
	} else if len(program) == 0 {
		return nil, errors.New("register all: no program")
	}
	extra, err := shlex.Split(r.Args)
	if err != nil {
		return nil, errors.Wrap(err, "parse arguments")
	}
	if err := os.MkdirAll(r.OutDir, 0755); err != nil {
		return nil, err
	}
	log := r.logger()

	results := make([]Result, len(pairs))
	g := new(errgroup.Group)
	g.SetLimit(r.workers())
	for i, pair := range pairs {
		results[i].Pair = pair
		if err := ctx.Err(); err != nil {
			results[i].Err = err
			continue
		}
		i, pair := i, pair
		g.Go(func() error {
			output, err := r.register(ctx, program, extra, pair)
			results[i].Output = output
			results[i].Err = err
			if err != nil {
				log.Warn("registration failed", zap.String("wrl", pair.WRL), zap.Error(err))
			} else {
				log.Info("registered", zap.String("wrl", pair.WRL))
			}
			return nil
		})
	}
	g.Wait()
	return results, nil
}

func (r *Registrar) register(ctx context.Context, program, extra []string, pair Pair) ([]byte, error) {
	args := append([]string{}, program[1:]...)
	args = append(args, "-S", pair.WRL, "-SL", pair.LND)
	texture := wrl.FindTexture(pair.WRL, wrl.DefaultHeaderLines)
	if texture != "" {
		args = append(args, "-SI", filepath.Join(filepath.Dir(pair.WRL), texture))
	}
	args = append(args, extra...)

	workDir, err := os.MkdirTemp("", "register")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	cmd := exec.CommandContext(ctx, program[0], args...)
	cmd.Dir = workDir
	r.logger().Debug("calling register", zap.Strings("args", cmd.Args))
	output, err := cmd.CombinedOutput()
	if err != nil {
		return output, errors.Wrap(err, "run register")
	}

	base := baseName(pair.WRL)
	if texture != "" {
		err := moveFile(filepath.Join(workDir, registeredTexture),
			filepath.Join(r.OutDir, "iso"+base+".jpg"))
		if err != nil {
			return output, err
		}
	}
	err = moveFile(filepath.Join(workDir, registeredRGB), filepath.Join(r.OutDir, "tri"+base+".rgb"))
	if err != nil {
		return output, err
	}
	data, err := os.ReadFile(filepath.Join(workDir, registeredWRL))
	if err != nil {
		return output, err
	}
	data = bytes.Replace(data, []byte(registeredTexture), []byte("iso"+base+".jpg"), 1)
	return output, os.WriteFile(filepath.Join(r.OutDir, base+"ER.wrl"), data, 0644)
}

func (r *Registrar) workers() int {
	if r.Workers <= 0 {
		return runtime.NumCPU()
	}
	return r.Workers
}

func (r *Registrar) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// moveFile renames a file, copying it when source and
// destination are on different devices.
func moveFile(source, dest string) error {
	if err := os.Rename(source, dest); err == nil {
		return nil
	}
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(source)
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n'\"\\") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

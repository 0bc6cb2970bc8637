package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"k8s.io/examples/AI/lyfnpu/pkg/blobs"
	"k8s.io/examples/AI/lyfnpu/pkg/core"
	"k8s.io/examples/AI/lyfnpu/pkg/driver"
	"k8s.io/klog/v2"
)

func main() {
	ctx := context.Background()
	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

type stringList []string

func (l *stringList) String() string {
	return strings.Join(*l, ",")
}

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func run(ctx context.Context) error {
	modelPath := os.Getenv("LYF_MODEL")
	cacheDir := os.Getenv("CACHE_DIR")
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "lyfnpu-programs")
	}
	cacheBucket := os.Getenv("CACHE_BUCKET")
	programStore := os.Getenv("PROGRAM_STORE")
	properties := os.Getenv("LYF_PROPERTIES")
	outputDir := "."
	var inputs stringList

	klog.InitFlags(nil)
	flag.StringVar(&modelPath, "model", modelPath, "path to the model file (YAML)")
	flag.StringVar(&cacheDir, "cache-dir", cacheDir, "local directory for compiled programs")
	flag.StringVar(&cacheBucket, "cache-bucket", cacheBucket, "GCS bucket shared between hosts (gs://<bucketName>)")
	flag.StringVar(&programStore, "program-store", programStore, "URL of a program-store server, used when no bucket is set")
	flag.StringVar(&properties, "properties", properties, "context properties, KEY1=VALUE1;KEY2=VALUE2")
	flag.StringVar(&outputDir, "output-dir", outputDir, "directory to write outputs to")
	flag.Var(&inputs, "input", "raw little-endian input data, one flag per model input in order")
	flag.Parse()

	log := klog.FromContext(ctx)

	if modelPath == "" {
		return fmt.Errorf("must specify --model or LYF_MODEL")
	}
	model, err := core.LoadModelFile(modelPath)
	if err != nil {
		return err
	}
	if len(inputs) != len(model.InputOperands) {
		return fmt.Errorf("model has %d inputs, got %d --input flags", len(model.InputOperands), len(inputs))
	}

	store, err := programStoreFor(cacheBucket, programStore)
	if err != nil {
		return err
	}

	device, err := driver.OpenDevice(ctx)
	if err != nil {
		return fmt.Errorf("opening device: %w", err)
	}
	defer device.Close(ctx)

	c, err := driver.CreateContext(ctx, device, properties)
	if err != nil {
		return fmt.Errorf("creating context: %w", err)
	}
	defer c.Close(ctx)

	supported, err := driver.ValidateProgram(ctx, c, model)
	if err != nil {
		return err
	}
	var unsupported []string
	for i, ok := range supported {
		if !ok {
			unsupported = append(unsupported, fmt.Sprintf("%d:%v", i, model.Operations[i].Type))
		}
	}
	if len(unsupported) != 0 {
		return fmt.Errorf("model has unsupported operations: %s", strings.Join(unsupported, ", "))
	}

	programs := &driver.ProgramCache{Dir: cacheDir, Store: store}
	program, err := programs.CreateProgram(ctx, c, model)
	if err != nil {
		return fmt.Errorf("creating program (status %v): %w", driver.StatusFromError(err), err)
	}
	defer program.Close(ctx)

	args, err := inputArguments(model, inputs)
	if err != nil {
		return err
	}

	outputs := make([]core.Argument, program.OutputCount())
	for i := range outputs {
		outputs[i].Index = i
	}
	if err := program.Execute(ctx, args, outputs); err != nil {
		return fmt.Errorf("executing program (status %v): %w", driver.StatusFromError(err), err)
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory %q: %w", outputDir, err)
	}
	for _, output := range outputs {
		p := filepath.Join(outputDir, fmt.Sprintf("output%d.bin", output.Index))
		if err := os.WriteFile(p, output.Buffer, 0644); err != nil {
			return fmt.Errorf("writing output %d: %w", output.Index, err)
		}
		log.Info("wrote output", "index", output.Index, "shape", output.Shape, "path", p)
	}

	return nil
}

// inputArguments reads one raw input file per model input. Inputs are bound
// with the dimensions declared in the model, which must all be known.
func inputArguments(model *core.Model, paths []string) ([]core.Argument, error) {
	args := make([]core.Argument, len(paths))
	for i, p := range paths {
		operand := model.InputOperands[i]
		shape := operand.Type.Dimensions.Values()
		for _, dim := range shape {
			if dim < 0 {
				return nil, fmt.Errorf("input %d (%s) has unknown dimensions %v", i, operand.Name, shape)
			}
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading input %d: %w", i, err)
		}
		args[i] = core.Argument{
			Index:  i,
			Shape:  shape,
			Buffer: b,
		}
	}
	return args, nil
}

func programStoreFor(cacheBucket, programStore string) (blobs.Blobstore, error) {
	switch {
	case strings.HasPrefix(cacheBucket, "gs://"):
		bucket, prefix, _ := strings.Cut(strings.TrimPrefix(cacheBucket, "gs://"), "/")
		return &blobs.GCSBlobstore{Bucket: bucket, Prefix: prefix}, nil
	case cacheBucket != "":
		return nil, fmt.Errorf("CACHE_BUCKET must be a GCS bucket URL (gs://<bucketName>)")
	case programStore != "":
		u, err := url.Parse(programStore)
		if err != nil {
			return nil, fmt.Errorf("parsing program store url %q: %w", programStore, err)
		}
		return &blobs.ProgramServer{URL: u}, nil
	default:
		return nil, nil
	}
}

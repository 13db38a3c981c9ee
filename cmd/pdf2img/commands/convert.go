package commands

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/url"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"

	"github.com/stefando/pdf2img/internal/api"
	"github.com/stefando/pdf2img/internal/app/convert"
	"github.com/stefando/pdf2img/internal/bootstrap"
	"github.com/stefando/pdf2img/internal/model"
	"github.com/stefando/pdf2img/internal/storage"
)

type ConvertCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	files  []string
	mode   string
	output string
}

// NewConvertCommand returns the convert command.
func NewConvertCommand(rootCmd *RootCommand, app *kingpin.Application) *ConvertCommand {
	c := &ConvertCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("convert", "Convert local PDF documents into JPG images.")
	c.Cmd.Arg("files", "PDF documents to convert.").Required().ExistingFilesVar(&c.files)
	c.Cmd.Flag("mode", "Conversion mode (pages, extract).").Default(api.PDFToJPGModePages).EnumVar(&c.mode, api.PDFToJPGModePages, api.PDFToJPGModeExtract)
	c.Cmd.Flag("output", "Also download the result to this path.").StringVar(&c.output)

	return c
}

func (c ConvertCommand) Name() string { return c.Cmd.FullCommand() }

func (c ConvertCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	app, err := bootstrap.New(ctx, *c.rootCmd.Config, logger)
	if err != nil {
		return fmt.Errorf("could not bootstrap: %w", err)
	}

	params, err := api.PDFToJPG.Parameters(url.Values{"mode": {c.mode}})
	if err != nil {
		return err
	}

	files := make([]model.InputFile, 0, len(c.files))
	for _, path := range c.files {
		f, err := localInputFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	res, err := app.Converter.Run(ctx, convert.Request{
		Files:           files,
		Tool:            api.PDFToJPG.Name,
		ExtraParameters: params,
	})
	if err != nil {
		return fmt.Errorf("could not convert: %w", err)
	}

	if c.output != "" {
		if err := downloadObject(ctx, app.ObjectStore, res.Output.Name, c.output); err != nil {
			return err
		}
		logger.Infof("result written to %s", c.output)
	}

	fmt.Fprintln(c.rootCmd.Stdout, res.Output.URL)

	return nil
}

// localInputFile returns the input file of a local path, the content type
// comes from the extension.
func localInputFile(path string) (model.InputFile, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.InputFile{}, fmt.Errorf("could not stat %s: %w", path, err)
	}

	return model.InputFile{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Size:        info.Size(),
		Open: func() (io.ReadSeekCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func downloadObject(ctx context.Context, store storage.ObjectStore, name, path string) (err error) {
	body, err := store.Download(ctx, name)
	if err != nil {
		return fmt.Errorf("could not download result: %w", err)
	}
	defer body.Close()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("could not close %s: %w", path, cerr)
		}
	}()

	if _, err := io.Copy(f, body); err != nil {
		return fmt.Errorf("could not write %s: %w", path, err)
	}

	return nil
}

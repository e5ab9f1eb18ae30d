// composer-send drives the full outgoing pipeline from the command line:
// files are transcoded, queued, and delivered through the same state machine
// the conversation page uses.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/micumarket/composer/internal/attachments"
	"github.com/micumarket/composer/internal/composer"
	"github.com/micumarket/composer/internal/imaging"
	"github.com/micumarket/composer/internal/layout"
	"github.com/micumarket/composer/internal/render"
	"github.com/micumarket/composer/internal/transport"
	"github.com/micumarket/composer/shared/config"
	"github.com/micumarket/composer/shared/domain"
	"github.com/micumarket/composer/shared/logger"
)

// consoleSink prints the previews a page would render.
type consoleSink struct{}

func (consoleSink) ShowPreview(p attachments.Preview) {
	fmt.Printf("attachment %d: %s (%s)\n", p.Index+1, p.Filename, p.SizeLabel)
}
func (consoleSink) RemovePreview(int) {}
func (consoleSink) ClearPreviews()    {}

// There is no page to lay out, so the layout manager gets fixed measurements
// and a surface that swallows the results.
type fixedMeasurer struct{}

func (fixedMeasurer) Measure() layout.Regions {
	return layout.Regions{Viewport: 900, Header: 60, Footer: 40, ConversationHeader: 50, ComposerForm: 80}
}

type nopSurface struct{}

func (nopSurface) SetMessageAreaHeight(int) {}
func (nopSurface) ScrollToBottom()          {}

func main() {
	var (
		configFolder = flag.String("config_folder", "config", "path to folder with configs")
		serverURL    = flag.String("server", "http://localhost:8080", "composerd base URL")
		conversation = flag.String("conversation", "default", "conversation id")
		message      = flag.String("m", "", "message text")
		csrf         = flag.String("csrf", "", "csrf token, omitted when empty")
		profileName  = flag.String("profile", "message", "transcode profile: avatar, listing or message")
	)
	flag.Parse()

	cfg := config.MustLoad(*configFolder)
	logger.Initialize(cfg.Log.Level, cfg.Log.JSON)

	files, err := readFiles(flag.Args())
	if err != nil {
		logger.Log.Error("read attachments", "err", err)
		os.Exit(1)
	}
	if *message == "" && len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: composer-send -m <text> [files...]")
		os.Exit(2)
	}

	profile, err := profileFor(cfg, *profileName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	transcoder := func(f domain.SourceFile) (domain.SourceFile, error) {
		out, err := imaging.Transcode(f, profile)
		if err != nil {
			return out, err
		}
		if width, height, dimErr := imaging.Dimensions(out.Data); dimErr == nil {
			fmt.Printf("transcoded %s to %dx%d\n", out.Name, width, height)
		}
		return out, nil
	}
	queue := attachments.NewQueue(transcoder, attachments.NewPreviewRegistry(), consoleSink{})
	client := transport.New(*serverURL, *conversation, transport.StaticToken(*csrf))
	list := render.NewList(cfg.Composer.ErrorFlash(), cfg.Composer.SuccessPulse())
	lm := layout.NewManager(fixedMeasurer{}, nopSurface{}, cfg.Composer)

	comp := composer.New(cfg.Composer, client, list, queue, lm)
	comp.SetContent(*message)
	if len(files) > 0 {
		comp.AttachFiles(files)
	}

	if err := comp.Submit(context.Background()); err != nil {
		logger.Log.Error("delivery failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("message delivered")
}

func profileFor(cfg *config.Config, name string) (config.Profile, error) {
	switch name {
	case "avatar":
		return cfg.Profiles.Avatar, nil
	case "listing":
		return cfg.Profiles.Listing, nil
	case "message":
		return cfg.Profiles.Message, nil
	default:
		return config.Profile{}, fmt.Errorf("unknown profile %q, want avatar, listing or message", name)
	}
}

func readFiles(paths []string) ([]domain.SourceFile, error) {
	var out []domain.SourceFile
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		mimeType := mime.TypeByExtension(filepath.Ext(p))
		if mimeType == "" {
			mimeType = http.DetectContentType(data)
		}
		out = append(out, domain.SourceFile{
			Name:     filepath.Base(p),
			MimeType: mimeType,
			ModTime:  info.ModTime(),
			Data:     data,
		})
	}
	return out, nil
}

// Command asrmock is a stand-in transcription server for local
// development. It accepts the same multipart upload and answers with
// the same event stream as the real service, echoing canned phrases
// timed against the uploaded audio.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"github.com/voxtype/voxtype/internal/audio"
	"github.com/voxtype/voxtype/internal/transcription"
)

func main() {
	addr := flag.String("addr", ":8090", "listen address")
	token := flag.String("token", "", "required bearer token (empty disables the check)")
	phrases := flag.String("phrases", "Hello world", "comma-separated phrases returned as segments")
	delay := flag.Duration("delay", 200*time.Millisecond, "delay between event lines")
	failStatus := flag.Int("fail", 0, "if non-zero, answer every upload with this HTTP status")
	empty := flag.Bool("empty", false, "answer with an empty transcript")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             64 << 20,
	})

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	app.Post("/v1/transcribe", func(c *fiber.Ctx) error {
		if *token != "" && c.Get("Authorization") != "Bearer "+*token {
			return c.Status(fiber.StatusUnauthorized).SendString("invalid token")
		}

		if *failStatus != 0 {
			return c.Status(*failStatus).SendString("simulated failure")
		}

		fileHeader, err := c.FormFile("audio")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("missing audio part")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("unreadable audio part")
		}
		defer file.Close()

		var buf bytes.Buffer
		if _, err := buf.ReadFrom(file); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString("unreadable audio part")
		}

		container := buf.Bytes()
		if err := audio.ValidateWAV(container); err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("invalid container: %v", err))
		}

		info, err := audio.GetWAVInfo(container)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).SendString(fmt.Sprintf("invalid container: %v", err))
		}

		logger.Info("Upload received",
			slog.String("request_id", c.Get("X-Request-ID")),
			slog.Int("bytes", len(container)),
			slog.Float64("duration_seconds", info.Duration),
		)

		payload := segmentsJSON(*phrases, info.Duration, *empty)
		pause := *delay

		c.Set("Content-Type", "text/event-stream")
		c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
			for _, fragment := range splitFragments(payload) {
				event, err := json.Marshal(map[string]string{"text": fragment})
				if err != nil {
					return
				}

				fmt.Fprintf(w, "data: %s\n", event)
				if err := w.Flush(); err != nil {
					return
				}

				time.Sleep(pause)
			}

			fmt.Fprint(w, "event: done\n")
			w.Flush()
		}))

		return nil
	})

	logger.Info("Mock transcription server listening", slog.String("addr", *addr))
	if err := app.Listen(*addr); err != nil {
		logger.Error("Server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// segmentsJSON spreads the phrases evenly across the audio duration and
// marshals them in the service's segment schema.
func segmentsJSON(phrases string, duration float64, empty bool) string {
	if empty {
		return "[]"
	}

	parts := strings.Split(phrases, ",")
	segments := make([]transcription.Segment, 0, len(parts))

	if duration <= 0 {
		duration = float64(len(parts))
	}

	step := duration / float64(len(parts))
	for i, phrase := range parts {
		segments = append(segments, transcription.Segment{
			Start:   float64(i) * step,
			End:     float64(i+1) * step,
			Content: strings.TrimSpace(phrase),
		})
	}

	data, err := json.Marshal(segments)
	if err != nil {
		return "[]"
	}

	return string(data)
}

// splitFragments cuts the payload into a handful of pieces so clients
// see the same partial-accumulation behavior as against the real
// server.
func splitFragments(payload string) []string {
	const fragmentSize = 48

	var fragments []string
	for len(payload) > fragmentSize {
		fragments = append(fragments, payload[:fragmentSize])
		payload = payload[fragmentSize:]
	}

	if payload != "" {
		fragments = append(fragments, payload)
	}

	return fragments
}

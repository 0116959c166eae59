package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/srp-packages/build-tools/pkg/config"
)

var levelColors = map[string]string{
	"trace": "dark_gray",
	"debug": "blue",
	"info":  "green",
	"warn":  "yellow",
	"error": "red",
	"fatal": "red",
	"panic": "red",
}

// fields which are already part of the rendered line
var renderedFields = map[string]bool{
	zerolog.LevelFieldName:   true,
	zerolog.MessageFieldName: true,
	zerolog.ErrorFieldName:   true,
	"task":                   true,
}

// consoleWriter renders zerolog's JSON events as one colored line per event. With debug enabled,
// the remaining fields are appended as an indented key: value list.
type consoleWriter struct {
	out   io.Writer
	debug bool
	mu    sync.Mutex
}

func (w *consoleWriter) Write(p []byte) (int, error) {
	var evt map[string]interface{}
	if err := json.Unmarshal(p, &evt); err != nil {
		return 0, eris.Wrapf(err, "cannot decode log event %q", p)
	}

	level, _ := evt[zerolog.LevelFieldName].(string)
	color, ok := levelColors[level]
	if !ok {
		color = "default"
	}

	var line strings.Builder
	line.WriteString("[" + color + "]")
	if task, ok := evt["task"].(string); ok {
		line.WriteString(task + ": ")
	}
	if level == "error" || level == "fatal" {
		line.WriteString("Error: ")
	}
	msg, _ := evt[zerolog.MessageFieldName].(string)
	line.WriteString(msg)

	if details, ok := evt[zerolog.ErrorFieldName].(string); ok {
		line.WriteString("\n" + details)
	}

	if w.debug {
		keys := make([]string, 0, len(evt))
		for key := range evt {
			if !renderedFields[key] {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)

		for _, key := range keys {
			line.WriteString(fmt.Sprintf("\n    %s: %v", key, evt[key]))
		}
	}
	line.WriteString("[reset]\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := colorstring.Fprint(w.out, line.String()); err != nil {
		return 0, err
	}

	return len(p), nil
}

func newLogger(out io.Writer, cfg *config.Config) zerolog.Logger {
	debug := cfg.Log.Debug
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debug)
	}

	return zerolog.New(&consoleWriter{out: out, debug: debug}).Level(cfg.LogLevel())
}

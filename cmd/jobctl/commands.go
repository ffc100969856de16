package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/genjobs/internal/client"
	"github.com/phrazzld/genjobs/internal/poller"
	"github.com/phrazzld/genjobs/internal/service/auth"
)

// Environment variables read for flag defaults.
const (
	envServerURL = "GENJOBS_SERVER_URL"
	envToken     = "GENJOBS_TOKEN"
	envJWTSecret = "GENJOBS_AUTH_JWT_SECRET"
)

type connOptions struct {
	Server string
	Token  string
}

func (o *connOptions) register(fs *flag.FlagSet) {
	fs.StringVar(&o.Server, "server", envOr(envServerURL, "http://localhost:8080"), "base URL of the genjobs server")
	fs.StringVar(&o.Token, "token", os.Getenv(envToken), "bearer token for the jobs API")
}

func (o *connOptions) client() (*client.Client, error) {
	var opts []client.Option
	if o.Token != "" {
		opts = append(opts, client.WithToken(o.Token))
	}
	return client.New(o.Server, opts...)
}

type pollFlags struct {
	Interval time.Duration
	Attempts int
	JSON     bool
}

func (o *pollFlags) register(fs *flag.FlagSet) {
	fs.DurationVar(&o.Interval, "interval", 0, "time between status queries (default depends on the event)")
	fs.IntVar(&o.Attempts, "attempts", 0, "maximum number of status queries (default depends on the event)")
	fs.BoolVar(&o.JSON, "json", false, "print the final result as raw JSON only")
}

func (o *pollFlags) options(ctx *commandContext, eventName string) poller.Options {
	opts := poller.OptionsFor(eventName)
	if o.Interval > 0 {
		opts.Interval = o.Interval
	}
	if o.Attempts > 0 {
		opts.MaxAttempts = o.Attempts
	}
	opts.Logger = ctx.Logger
	return opts
}

type dispatchOptions struct {
	connOptions
	pollFlags
	Event      string
	ObjectType string
	ObjectID   string
	ObjectKey  string
	Payload    string
	NoWait     bool
}

func runDispatch(ctx *commandContext, args []string) error {
	var opts dispatchOptions
	fs := flag.NewFlagSet("dispatch", flag.ContinueOnError)
	opts.connOptions.register(fs)
	opts.pollFlags.register(fs)
	fs.StringVar(&opts.Event, "event", "", "event name, e.g. character/sheet/generate (required)")
	fs.StringVar(&opts.ObjectType, "object-type", "character", "type of the object the job belongs to")
	fs.StringVar(&opts.ObjectID, "object-id", "", "id of the object the job belongs to (required)")
	fs.StringVar(&opts.ObjectKey, "object-key", "", "which artifact of the object the job produces (defaults to the event's second segment)")
	fs.StringVar(&opts.Payload, "payload", "", "JSON payload, or @file to read it from a file")
	fs.BoolVar(&opts.NoWait, "no-wait", false, "print the job id and exit without polling")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	if opts.Event == "" || opts.ObjectID == "" {
		return usageError{errors.New("-event and -object-id are required")}
	}
	if opts.ObjectKey == "" {
		opts.ObjectKey = defaultObjectKey(opts.Event)
	}

	payload, err := readPayload(opts.Payload)
	if err != nil {
		return usageError{err}
	}

	c, err := opts.client()
	if err != nil {
		return usageError{err}
	}

	dispatched, err := c.Dispatch(ctx.Ctx, client.JobRequest{
		EventName:  opts.Event,
		ObjectType: opts.ObjectType,
		ObjectID:   opts.ObjectID,
		ObjectKey:  opts.ObjectKey,
		Payload:    payload,
	})
	if err != nil {
		return err
	}

	if !opts.JSON || opts.NoWait {
		note := ""
		if dispatched.Deduplicated {
			note = " (already in flight)"
		}
		_, _ = fmt.Fprintf(ctx.Out, "job %s%s\n", dispatched.JobID, note)
	}
	if opts.NoWait {
		return nil
	}

	return follow(ctx, c, dispatched.JobID, opts.Event, opts.pollFlags)
}

type waitOptions struct {
	connOptions
	pollFlags
	Event string
}

func runWait(ctx *commandContext, args []string) error {
	var opts waitOptions
	fs := flag.NewFlagSet("wait", flag.ContinueOnError)
	opts.connOptions.register(fs)
	opts.pollFlags.register(fs)
	fs.StringVar(&opts.Event, "event", "", "event name of the job, selects the polling defaults")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	jobID, err := jobIDArg(fs.Args())
	if err != nil {
		return err
	}

	c, err := opts.client()
	if err != nil {
		return usageError{err}
	}

	eventName := opts.Event
	if eventName == "" {
		job, err := c.GetJob(ctx.Ctx, jobID)
		if err != nil {
			return err
		}
		eventName = job.EventName
	}

	return follow(ctx, c, jobID, eventName, opts.pollFlags)
}

// follow polls a job, printing every progress snapshot, and prints the
// final result once the job completes.
func follow(ctx *commandContext, c *client.Client, jobID uuid.UUID, eventName string, flags pollFlags) error {
	onProgress := func(s poller.Snapshot[json.RawMessage]) {
		if flags.JSON {
			return
		}
		_, _ = fmt.Fprintf(ctx.Out, "[%d] %s: %s\n", s.StepIndex, s.Step, s.Message)
	}

	p := poller.New[json.RawMessage](poller.NewHTTPSource(c), jobID, flags.options(ctx, eventName), onProgress)
	snap, err := p.Run(ctx.Ctx)
	if err != nil {
		return err
	}

	if !flags.JSON {
		_, _ = fmt.Fprintf(ctx.Out, "complete: %s\n", snap.Message)
	}
	return printJSON(ctx, snap.Result)
}

func runStatus(ctx *commandContext, args []string) error {
	var opts connOptions
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	jobID, err := jobIDArg(fs.Args())
	if err != nil {
		return err
	}
	c, err := opts.client()
	if err != nil {
		return usageError{err}
	}

	job, err := c.GetJob(ctx.Ctx, jobID)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(ctx.Out, 0, 4, 2, ' ', 0)
	rows := [][2]string{
		{"id", job.ID.String()},
		{"event", job.EventName},
		{"object", fmt.Sprintf("%s/%s/%s", job.ObjectType, job.ObjectID, job.ObjectKey)},
		{"status", string(job.Status)},
		{"step", fmt.Sprintf("%s (%d)", job.Step, job.StepIndex)},
		{"message", job.Message},
		{"error", job.Error},
		{"updated", job.UpdatedAt.Format(time.RFC3339)},
	}
	for _, row := range rows {
		if row[1] == "" {
			continue
		}
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(job.Result) > 0 {
		return printJSON(ctx, job.Result)
	}
	return nil
}

func runEvents(ctx *commandContext, args []string) error {
	var opts connOptions
	fs := flag.NewFlagSet("events", flag.ContinueOnError)
	opts.register(fs)
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	c, err := opts.client()
	if err != nil {
		return usageError{err}
	}
	names, err := c.Events(ctx.Ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		_, _ = fmt.Fprintln(ctx.Out, name)
	}
	return nil
}

type tokenOptions struct {
	Secret  string
	Subject string
	TTL     time.Duration
}

func runToken(ctx *commandContext, args []string) error {
	var opts tokenOptions
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.StringVar(&opts.Secret, "secret", os.Getenv(envJWTSecret), "JWT signing secret (at least 32 characters)")
	fs.StringVar(&opts.Subject, "subject", "jobctl", "subject recorded in the token")
	fs.DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return usageError{err}
	}

	tokens, err := auth.NewJWTService(opts.Secret)
	if err != nil {
		return usageError{err}
	}
	token, err := tokens.GenerateToken(ctx.Ctx, opts.Subject, opts.TTL)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(ctx.Out, token)
	return nil
}

func printJSON(ctx *commandContext, raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readPayload(arg string) (json.RawMessage, error) {
	if arg == "" {
		return nil, nil
	}
	data := []byte(arg)
	if path, ok := strings.CutPrefix(arg, "@"); ok {
		var err error
		if data, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read payload: %w", err)
		}
	}
	if !json.Valid(data) {
		return nil, errors.New("payload must be valid JSON")
	}
	return json.RawMessage(data), nil
}

func jobIDArg(args []string) (uuid.UUID, error) {
	if len(args) != 1 {
		return uuid.Nil, usageError{errors.New("expected exactly one job id")}
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, usageError{fmt.Errorf("invalid job id %q", args[0])}
	}
	return id, nil
}

// defaultObjectKey picks the artifact segment of an event name:
// character/sheet/generate -> sheet.
func defaultObjectKey(eventName string) string {
	parts := strings.Split(eventName, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return eventName
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func exitCode(err error) int {
	var (
		usage   usageError
		jobErr  *poller.JobError
		timeout *poller.TimeoutError
	)
	switch {
	case errors.As(err, &usage):
		return exitUsage
	case errors.As(err, &jobErr):
		return exitJobError
	case errors.As(err, &timeout):
		return exitTimeout
	default:
		return exitFailure
	}
}

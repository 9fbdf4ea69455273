package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"

	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/constant"
	"github.com/xeptore/beater/log"
	"github.com/xeptore/beater/result"
	"github.com/xeptore/beater/spotify"
	"github.com/xeptore/beater/spotify/auth"
	"github.com/xeptore/beater/spotify/downloader"
	"github.com/xeptore/beater/spotify/format"
	"github.com/xeptore/beater/spotify/link"
	"github.com/xeptore/beater/spotify/lyrics"
	"github.com/xeptore/beater/spotify/types"
)

func main() {
	logger := log.NewDefault()

	//nolint:exhaustruct
	app := &cli.Command{
		Name:    "beater",
		Version: constant.Version,
		Metadata: map[string]any{
			"compiled_at": constant.CompileTime,
		},
		Suggest:                    true,
		Usage:                      "Spotify track, album and playlist downloader",
		EnableShellCompletion:      true,
		ShellCompletionCommandName: "shell-completion",
		AllowExtFlags:              false,
		Flags: []cli.Flag{
			//nolint:exhaustruct
			&cli.StringFlag{
				Name:     "config",
				Usage:    "Config file path",
				Required: false,
			},
		},
		Commands: []*cli.Command{
			//nolint:exhaustruct
			{
				Name:  "login",
				Usage: "Login to Spotify",
				Description: strings.Join(
					[]string{
						"Credentials are taken from the flags, SPOTIFY_USERNAME and SPOTIFY_PASSWORD,",
						"the stored credentials file, or asked for interactively, in that order.",
					},
					"\n",
				),
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Usage: "Account username"},
					&cli.StringFlag{Name: "password", Usage: "Account password"},
				},
				Action: login,
			},
			{
				Name:   "logout",
				Usage:  "Forget the stored session and credentials",
				Action: logout,
			},
			{
				Name:      "download",
				Usage:     "Download tracks, albums or playlists",
				ArgsUsage: "LINK...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Usage: "Audio format: 96, 160 or 320"},
					&cli.BoolFlag{Name: "no-lyrics", Usage: "Do not download lyrics"},
				},
				Action: download,
			},
			{
				Name:      "lyrics",
				Usage:     "Print the lyrics of a track in LRC format",
				ArgsUsage: "LINK",
				Action:    printLyrics,
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); nil != err {
		if errors.Is(err, context.Canceled) {
			logger.Trace().Msg("Application was canceled")
			os.Exit(1)
		}

		var exitCode exitCodeError
		if errors.As(err, &exitCode) {
			os.Exit(int(exitCode))
		}

		logger.Error().Err(err).Msg("Application exited with error")
		os.Exit(10)
	}
}

type exitCodeError int

func (e exitCodeError) Error() string {
	return "error with exit code: " + strconv.Itoa(int(e))
}

func setup(cmd *cli.Command) (zerolog.Logger, *config.Config, error) {
	logger := log.NewDefault()

	if err := godotenv.Load(); nil != err {
		if !errors.Is(err, os.ErrNotExist) {
			return logger, nil, fmt.Errorf("load .env file: %v", err)
		}
		logger.Info().Msg(".env file was not found")
	} else {
		logger.Debug().Msg(".env file was loaded")
	}

	conf, err := config.Load(cmd.String("config"))
	if nil != err {
		return logger, nil, fmt.Errorf("load config: %v", err)
	}

	logger = log.FromConfig(conf.Log)

	logger.Debug().Dict("config", conf.ToDict()).Msg("Config loaded")

	return logger, conf, nil
}

func login(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	client, err := spotify.NewClient(*conf)
	if nil != err {
		return fmt.Errorf("create spotify client: %v", err)
	}
	defer func() {
		if closeErr := client.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close spotify client")
		}
	}()

	given := auth.Credentials{
		Username: cmd.String("username"),
		Password: cmd.String("password"),
	}

	err = client.Login(ctx, logger, given)
	if errors.Is(err, spotify.ErrCredentialsRequired) {
		creds, promptErr := auth.Prompt(given)
		if nil != promptErr {
			if errors.Is(promptErr, syscall.ENOTTY) {
				logger.Error().Msg("No TTY detected. Pass --username and --password, or set SPOTIFY_USERNAME and SPOTIFY_PASSWORD.")
				return exitCodeError(1)
			}

			return fmt.Errorf("prompt for credentials: %v", promptErr)
		}
		err = client.Login(ctx, logger, *creds)
	}
	if nil != err {
		if errors.Is(err, spotify.ErrBadCredentials) {
			logger.Error().Msg("Login failed. Please check your username and password.")
			return exitCodeError(2)
		}

		return fmt.Errorf("login to spotify: %w", err)
	}

	logger.Info().Str("tier", client.AccountTier().String()).Msg("Logged in successfully!")

	return nil
}

func logout(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	client, err := spotify.NewClient(*conf)
	if nil != err {
		return fmt.Errorf("create spotify client: %v", err)
	}
	defer func() {
		if closeErr := client.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close spotify client")
		}
	}()

	if err := client.Logout(ctx); nil != err {
		return fmt.Errorf("logout from spotify: %w", err)
	}

	logger.Info().Msg("Logged out successfully")

	return nil
}

func connect(ctx context.Context, logger zerolog.Logger, conf config.Config) (*spotify.Client, error) {
	client, err := spotify.NewClient(conf)
	if nil != err {
		return nil, fmt.Errorf("create spotify client: %v", err)
	}

	if err := client.Connect(ctx, logger); nil != err {
		if closeErr := client.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close spotify client")
		}

		if errors.Is(err, spotify.ErrLoginRequired) || errors.Is(err, spotify.ErrBadCredentials) {
			logger.Error().Msg("Spotify session is not authorized. Please run the login command.")
			return nil, exitCodeError(2)
		}

		return nil, fmt.Errorf("connect to spotify: %w", err)
	}
	logger.Debug().Str("tier", client.AccountTier().String()).Msg("Connected to Spotify")

	return client, nil
}

func download(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	args := cmd.Args().Slice()
	if len(args) == 0 {
		logger.Error().Msg("At least one link is required")
		return exitCodeError(1)
	}

	links := make([]types.Link, len(args))
	for i, raw := range args {
		l, err := link.Parse(raw)
		if nil != err {
			logger.Error().Err(err).Str("link", raw).Msg("Invalid link")
			return exitCodeError(1)
		}
		links[i] = l
	}

	client, err := connect(ctx, logger, *conf)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := client.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close spotify client")
		}
	}()

	prefs, err := client.DefaultPreferences()
	if nil != err {
		return fmt.Errorf("load download preferences: %v", err)
	}

	if f := cmd.String("format"); len(f) > 0 {
		af, err := types.ParseAudioFormat(f)
		if nil != err {
			logger.Error().Err(err).Msg("Invalid format")
			return exitCodeError(1)
		}
		prefs.Format = &af
	}

	if cmd.Bool("no-lyrics") {
		prefs.Lyrics = false
	}

	var (
		all    []result.Of[downloader.TrackResult]
		failed bool
	)
	for _, l := range links {
		logger := logger.With().Str("link", l.URI()).Logger()

		results, err := client.TryDownloadLink(ctx, logger, l, prefs)
		all = append(all, results...)
		if nil != err {
			failed = true

			switch {
			case errors.Is(err, context.Canceled):
				return err
			case errors.Is(err, spotify.ErrLoginRequired):
				logger.Error().Msg("Spotify session expired. Please run the login command.")
				return exitCodeError(2)
			case errors.Is(err, spotify.ErrUnsupportedArtistLinkKind):
				logger.Error().Msg("Artist links are not supported. Download the artist's albums instead.")
			case errors.Is(err, spotify.ErrPartialBatch):
				logger.Warn().Msg("Some tracks failed to download")
			default:
				logger.Error().Err(err).Msg("Failed to download link")
			}
		}
	}

	renderResults(all)

	if failed {
		return exitCodeError(3)
	}

	return nil
}

func renderResults(results []result.Of[downloader.TrackResult]) {
	if len(results) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Track", "Title", "Format", "Lyrics", "Status", "Path"})

	for _, r := range results {
		tr, err := r.Get()
		if nil != err {
			var trackErr *downloader.TrackError
			id := ""
			if errors.As(err, &trackErr) {
				id = trackErr.TrackID
			}
			t.AppendRow(table.Row{id, "", "", "", text.FgRed.Sprint(failureReason(err)), ""})
			continue
		}

		status := text.FgGreen.Sprint("downloaded")
		if tr.Skipped {
			status = text.FgYellow.Sprint("already downloaded")
		}
		t.AppendRow(table.Row{
			tr.TrackID,
			types.JoinArtists(tr.Artists) + " - " + tr.Title,
			tr.Format.String(),
			tr.Lyrics,
			status,
			tr.Path,
		})
	}

	t.Render()
}

func failureReason(err error) string {
	var notFound *format.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return notFound.Error()
	case errors.Is(err, spotify.ErrAudioKey):
		return "decryption key refused, try a lower quality"
	case errors.Is(err, downloader.ErrCDNResolutionFailed), errors.Is(err, downloader.ErrFetchFailed):
		return "download failed, check your network"
	default:
		return err.Error()
	}
}

func printLyrics(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger, conf, err := setup(cmd)
	if nil != err {
		return err
	}

	if cmd.Args().Len() != 1 {
		logger.Error().Msg("Exactly one track link is required")
		return exitCodeError(1)
	}

	l, err := link.Parse(cmd.Args().First())
	if nil != err {
		logger.Error().Err(err).Msg("Invalid link")
		return exitCodeError(1)
	}

	client, err := connect(ctx, logger, *conf)
	if nil != err {
		return err
	}
	defer func() {
		if closeErr := client.Close(); nil != closeErr {
			logger.Error().Err(closeErr).Msg("Failed to close spotify client")
		}
	}()

	lrc, err := client.Lyrics(ctx, logger, l)
	if nil != err {
		switch {
		case errors.Is(err, lyrics.ErrNotFound):
			logger.Info().Msg("Track has no lyrics")
			return nil
		case errors.Is(err, spotify.ErrNotATrack):
			logger.Error().Msg("Lyrics are only available for track links")
			return exitCodeError(1)
		}

		return fmt.Errorf("get lyrics: %w", err)
	}

	fmt.Fprintln(os.Stdout, lrc)

	return nil
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/xeptore/beater/redact"
)

type Config struct {
	CredsDir     string  `yaml:"creds_dir"`
	DownloadsDir string  `yaml:"downloads_dir"`
	Log          Log     `yaml:"log"`
	Spotify      Spotify `yaml:"spotify"`
}

func (c *Config) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("creds_dir", c.CredsDir).
		Str("downloads_dir", c.DownloadsDir).
		Dict("log", c.Log.ToDict()).
		Dict("spotify", c.Spotify.ToDict())
}

func (c *Config) setDefaults() {
	if c.CredsDir == "" {
		c.CredsDir = "./creds"
	}

	if c.DownloadsDir == "" {
		c.DownloadsDir = "./downloads"
	}

	c.Log.setDefaults()
	c.Spotify.setDefaults()
}

func (c *Config) validate() error {
	if err := validateDir("creds_dir", c.CredsDir); nil != err {
		return err
	}

	if err := validateDir("downloads_dir", c.DownloadsDir); nil != err {
		return err
	}

	if err := c.Log.validate(); nil != err {
		return fmt.Errorf("log config validation failed: %v", err)
	}

	if err := c.Spotify.validate(); nil != err {
		return fmt.Errorf("spotify config validation failed: %v", err)
	}

	return nil
}

func validateDir(name, path string) error {
	if i, err := os.Stat(path); nil != err {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s does not exist", name)
		}

		return fmt.Errorf("failed to stat %s: %v", name, err)
	} else if !i.IsDir() {
		return fmt.Errorf("%s must be a directory", name)
	}

	return nil
}

type Log struct {
	Level  string  `yaml:"level"`
	Format string  `yaml:"format"`
	File   LogFile `yaml:"file"`
}

func (c *Log) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("level", c.Level).
		Str("format", c.Format).
		Dict("file", c.File.ToDict())
}

func (c *Log) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}

	if c.Format == "" {
		c.Format = "pretty"
	}

	c.File.setDefaults()
}

func (c *Log) validate() error {
	if !slices.Contains([]string{"trace", "debug", "info", "warn", "error", "fatal", "panic"}, c.Level) {
		return fmt.Errorf(
			"level must be one of: trace, debug, info, warn, error, fatal, panic, got: %s",
			c.Level,
		)
	}

	if !slices.Contains([]string{"json", "pretty"}, c.Format) {
		return fmt.Errorf("format must be 'json' or 'pretty', got: %s", c.Format)
	}

	if err := c.File.validate(); nil != err {
		return fmt.Errorf("file config validation failed: %v", err)
	}

	return nil
}

// LogFile enables an additional rotating JSON log file when Path is set.
type LogFile struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

func (c *LogFile) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("path", c.Path).
		Int("max_size_mb", c.MaxSizeMB).
		Int("max_backups", c.MaxBackups).
		Int("max_age_days", c.MaxAgeDays).
		Bool("compress", c.Compress)
}

func (c *LogFile) setDefaults() {
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 50
	}

	if c.MaxBackups == 0 {
		c.MaxBackups = 3
	}

	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 28
	}
}

func (c *LogFile) validate() error {
	if c.MaxSizeMB < 0 {
		return errors.New("max_size_mb must be greater than 0")
	}

	if c.MaxBackups < 0 {
		return errors.New("max_backups must be greater than 0")
	}

	if c.MaxAgeDays < 0 {
		return errors.New("max_age_days must be greater than 0")
	}

	return nil
}

type Spotify struct {
	Username   string            `yaml:"-"`
	Password   string            `yaml:"-"`
	Session    SpotifySession    `yaml:"session"`
	Downloader SpotifyDownloader `yaml:"downloader"`
}

func (c *Spotify) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("username", c.Username).
		Str("password", lo.Ternary(len(c.Password) > 0, redact.String(c.Password), "")).
		Dict("session", c.Session.ToDict()).
		Dict("downloader", c.Downloader.ToDict())
}

func (c *Spotify) setDefaults() {
	c.Session.setDefaults()
	c.Downloader.setDefaults()
}

func (c *Spotify) validate() error {
	if err := c.Session.validate(); nil != err {
		return fmt.Errorf("session config validation failed: %v", err)
	}

	if err := c.Downloader.validate(); nil != err {
		return fmt.Errorf("downloader config validation failed: %v", err)
	}

	return nil
}

type SpotifySession struct {
	UserAgent         string           `yaml:"user_agent"`
	DeviceID          string           `yaml:"device_id"`
	RequestsPerSecond float64          `yaml:"requests_per_second"`
	Endpoints         SessionEndpoints `yaml:"endpoints"`
	Proxy             Proxy            `yaml:"proxy"`
	Storage           SessionStorage   `yaml:"storage"`
	Timeouts          SessionTimeouts  `yaml:"timeouts"`
}

func (c *SpotifySession) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("user_agent", c.UserAgent).
		Str("device_id", c.DeviceID).
		Float64("requests_per_second", c.RequestsPerSecond).
		Dict("endpoints", c.Endpoints.ToDict()).
		Dict("proxy", c.Proxy.ToDict()).
		Dict("storage", c.Storage.ToDict()).
		Dict("timeouts", c.Timeouts.ToDict())
}

func (c *SpotifySession) setDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) " +
			"Chrome/100.0.4896.127 Safari/537.36"
	}

	if c.DeviceID == "" {
		c.DeviceID = uuid.NewString()
	}

	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 10
	}

	c.Endpoints.setDefaults()
	c.Storage.setDefaults()
	c.Timeouts.setDefaults()
}

func (c *SpotifySession) validate() error {
	if c.RequestsPerSecond < 0 {
		return errors.New("requests_per_second must be greater than 0")
	}

	if err := c.Endpoints.validate(); nil != err {
		return fmt.Errorf("endpoints config validation failed: %v", err)
	}

	if err := c.Proxy.validate(); nil != err {
		return fmt.Errorf("proxy config validation failed: %v", err)
	}

	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	return nil
}

type SessionEndpoints struct {
	Login string `yaml:"login"`
	API   string `yaml:"api"`
	Key   string `yaml:"key"`
}

func (c *SessionEndpoints) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("login", c.Login).
		Str("api", c.API).
		Str("key", c.Key)
}

func (c *SessionEndpoints) setDefaults() {
	if c.Login == "" {
		c.Login = "https://login5.spotify.com/v3/login"
	}

	if c.API == "" {
		c.API = "https://spclient.wg.spotify.com"
	}

	if c.Key == "" {
		c.Key = "https://spclient.wg.spotify.com/audio-key/v1"
	}
}

func (c *SessionEndpoints) validate() error {
	for name, v := range map[string]string{"login": c.Login, "api": c.API, "key": c.Key} {
		if _, err := url.ParseRequestURI(v); nil != err {
			return fmt.Errorf("%s must be a valid URL: %v", name, err)
		}
	}

	return nil
}

type Proxy struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (c *Proxy) Enabled() bool {
	return len(c.Host) > 0 && c.Port > 0
}

func (c *Proxy) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("host", c.Host).
		Int("port", c.Port).
		Str("username", c.Username).
		Str("password", lo.Ternary(len(c.Password) > 0, redact.String(c.Password), ""))
}

func (c *Proxy) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port must be between 0 and 65535, got: %d", c.Port)
	}

	return nil
}

type SessionStorage struct {
	Path string `yaml:"path"`
}

func (c *SessionStorage) ToDict() *zerolog.Event {
	return zerolog.Dict().Str("path", c.Path)
}

func (c *SessionStorage) setDefaults() {
	if c.Path == "" {
		c.Path = "session.db"
	}
}

type SessionTimeouts struct {
	Login       Duration `yaml:"login"`
	GetMetadata Duration `yaml:"get_metadata"`
	ResolveCDN  Duration `yaml:"resolve_cdn"`
	RequestKey  Duration `yaml:"request_key"`
	GetLyrics   Duration `yaml:"get_lyrics"`
}

func (c *SessionTimeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Dur("login", c.Login.Duration).
		Dur("get_metadata", c.GetMetadata.Duration).
		Dur("resolve_cdn", c.ResolveCDN.Duration).
		Dur("request_key", c.RequestKey.Duration).
		Dur("get_lyrics", c.GetLyrics.Duration)
}

func (c *SessionTimeouts) setDefaults() {
	if c.Login.Duration == 0 {
		c.Login.Duration = 10 * time.Second
	}

	if c.GetMetadata.Duration == 0 {
		c.GetMetadata.Duration = 5 * time.Second
	}

	if c.ResolveCDN.Duration == 0 {
		c.ResolveCDN.Duration = 5 * time.Second
	}

	if c.RequestKey.Duration == 0 {
		c.RequestKey.Duration = 5 * time.Second
	}

	if c.GetLyrics.Duration == 0 {
		c.GetLyrics.Duration = 5 * time.Second
	}
}

func (c *SessionTimeouts) validate() error {
	if c.Login.Duration < 0 {
		return errors.New("login must be greater than 0")
	}

	if c.GetMetadata.Duration < 0 {
		return errors.New("get_metadata must be greater than 0")
	}

	if c.ResolveCDN.Duration < 0 {
		return errors.New("resolve_cdn must be greater than 0")
	}

	if c.RequestKey.Duration < 0 {
		return errors.New("request_key must be greater than 0")
	}

	if c.GetLyrics.Duration < 0 {
		return errors.New("get_lyrics must be greater than 0")
	}

	return nil
}

type SpotifyDownloader struct {
	// Format is one of 96, 160 or 320. Empty picks by account tier.
	Format string `yaml:"format"`
	Lyrics *bool  `yaml:"lyrics"`
	// MaxFileSizeMiB caps the size of a single encrypted file.
	MaxFileSizeMiB int                   `yaml:"max_file_size_mib"`
	Timeouts       DownloaderTimeouts    `yaml:"timeouts"`
	Concurrency    DownloaderConcurrency `yaml:"concurrency"`
	Cache          DownloaderCache       `yaml:"cache"`
}

func (c *SpotifyDownloader) LyricsEnabled() bool {
	return nil == c.Lyrics || *c.Lyrics
}

func (c *SpotifyDownloader) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Str("format", c.Format).
		Bool("lyrics", c.LyricsEnabled()).
		Int("max_file_size_mib", c.MaxFileSizeMiB).
		Dict("timeouts", c.Timeouts.ToDict()).
		Dict("concurrency", c.Concurrency.ToDict()).
		Dict("cache", c.Cache.ToDict())
}

func (c *SpotifyDownloader) setDefaults() {
	if c.MaxFileSizeMiB == 0 {
		c.MaxFileSizeMiB = 512
	}

	c.Timeouts.setDefaults()
	c.Concurrency.setDefaults()
}

func (c *SpotifyDownloader) validate() error {
	if !slices.Contains([]string{"", "96", "160", "320"}, c.Format) {
		return fmt.Errorf("format must be one of: 96, 160, 320, got: %s", c.Format)
	}

	if c.MaxFileSizeMiB < 0 {
		return errors.New("max_file_size_mib must be greater than 0")
	}

	if err := c.Timeouts.validate(); nil != err {
		return fmt.Errorf("timeouts config validation failed: %v", err)
	}

	if err := c.Concurrency.validate(); nil != err {
		return fmt.Errorf("concurrency config validation failed: %v", err)
	}

	if err := c.Cache.validate(); nil != err {
		return fmt.Errorf("cache config validation failed: %v", err)
	}

	return nil
}

type DownloaderTimeouts struct {
	DownloadCDNChunk Duration `yaml:"download_cdn_chunk"`
}

func (c *DownloaderTimeouts) ToDict() *zerolog.Event {
	return zerolog.Dict().Dur("download_cdn_chunk", c.DownloadCDNChunk.Duration)
}

func (c *DownloaderTimeouts) setDefaults() {
	if c.DownloadCDNChunk.Duration == 0 {
		c.DownloadCDNChunk.Duration = 60 * time.Second
	}
}

func (c *DownloaderTimeouts) validate() error {
	if c.DownloadCDNChunk.Duration < 0 {
		return errors.New("download_cdn_chunk must be greater than 0")
	}

	return nil
}

type DownloaderConcurrency struct {
	Tracks    int `yaml:"tracks"`
	CDNChunks int `yaml:"cdn_chunks"`
}

func (c *DownloaderConcurrency) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int("tracks", c.Tracks).
		Int("cdn_chunks", c.CDNChunks)
}

func (c *DownloaderConcurrency) setDefaults() {
	if c.Tracks == 0 {
		c.Tracks = 3
	}

	if c.CDNChunks == 0 {
		c.CDNChunks = 4
	}
}

func (c *DownloaderConcurrency) validate() error {
	if c.Tracks < 0 {
		return errors.New("tracks must be greater than 0")
	}

	if c.CDNChunks < 0 {
		return errors.New("cdn_chunks must be greater than 0")
	}

	return nil
}

// DownloaderCache bounds the decrypted content cache. Zero values mean
// unbounded and never expiring.
type DownloaderCache struct {
	MaxEntries int64    `yaml:"max_entries"`
	TTL        Duration `yaml:"ttl"`
}

func (c *DownloaderCache) ToDict() *zerolog.Event {
	return zerolog.Dict().
		Int64("max_entries", c.MaxEntries).
		Dur("ttl", c.TTL.Duration)
}

func (c *DownloaderCache) validate() error {
	if c.MaxEntries < 0 {
		return errors.New("max_entries must be greater than or equal to 0")
	}

	if c.TTL.Duration < 0 {
		return errors.New("ttl must be greater than or equal to 0")
	}

	return nil
}

type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("failed to parse duration: %v", err)
	}

	d.Duration = parsed

	return nil
}

func Load(filename string) (*Config, error) {
	filename = lo.Ternary(len(filename) > 0, filename, "config.yaml")

	data, err := os.ReadFile(filename)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %s: %v", filename, err)
	}

	var conf Config
	if err := yaml.Unmarshal(data, &conf); nil != err {
		return nil, fmt.Errorf("failed to parse config file %s: %v", filename, err)
	}

	conf.Spotify.Username = os.Getenv("SPOTIFY_USERNAME")
	conf.Spotify.Password = os.Getenv("SPOTIFY_PASSWORD")
	conf.setDefaults()

	if err := conf.validate(); nil != err {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return &conf, nil
}

package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/filmvault/curator/internal/errs"
)

// YtDlpCmd is the binary name invoked for both probing and downloading,
// matching the teacher's yt-dlp integration.
const YtDlpCmd = "yt-dlp"

// ytdlpProbeJSON is the subset of `yt-dlp -j` output this adapter reads.
type ytdlpProbeJSON struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Thumbnail string `json:"thumbnail"`
	Formats  []struct {
		FormatID string `json:"format_id"`
		Height   int    `json:"height"`
	} `json:"formats"`
}

// YtDlpProvider implements both VideoMetadataProvider and VideoDownloader
// by shelling out to yt-dlp, the same tool the teacher's extras pipeline
// uses (internal/youtube.go's buildYtDlpArgs/performDownload).
type YtDlpProvider struct{}

func NewYtDlpProvider() *YtDlpProvider { return &YtDlpProvider{} }

func (p *YtDlpProvider) Probe(ctx context.Context, url string) (*ProbeResult, error) {
	cmd := exec.CommandContext(ctx, YtDlpCmd, "-j", "--skip-download", url)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := stdout.String() + stderr.String()

	if err != nil {
		return nil, classifyYtDlpError(output, err)
	}

	var probe ytdlpProbeJSON
	if err := json.Unmarshal(stdout.Bytes(), &probe); err != nil {
		return nil, errs.Wrap(errs.KindProviderInvalidResponse, err, "unmarshal yt-dlp probe output")
	}

	formats := make([]string, 0, len(probe.Formats))
	bestHeight := probe.Height
	for _, f := range probe.Formats {
		formats = append(formats, f.FormatID)
		if f.Height > bestHeight {
			bestHeight = f.Height
		}
	}

	return &ProbeResult{
		Formats:      formats,
		BestWidth:    probe.Width,
		BestHeight:   bestHeight,
		Duration:     time.Duration(probe.Duration * float64(time.Second)),
		ThumbnailURL: probe.Thumbnail,
	}, nil
}

func (p *YtDlpProvider) Download(ctx context.Context, url, outPath string, maxHeight int) (*DownloadResult, error) {
	format := "best"
	if maxHeight > 0 {
		format = "best[height<=" + strconv.Itoa(maxHeight) + "]"
	}
	cmd := exec.CommandContext(ctx, YtDlpCmd,
		"--format", format,
		"--remux-video", "mkv",
		"--output", outPath,
		url,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := stdout.String() + stderr.String()

	if err != nil {
		return nil, classifyYtDlpError(output, err)
	}
	return &DownloadResult{}, nil
}

// Verify confirms whether url still resolves, used to distinguish a
// genuinely unavailable video from a transient download failure before
// the caller marks a trailer candidate permanently unavailable (spec.md
// §6 VideoDownloader.verify contract).
func (p *YtDlpProvider) Verify(ctx context.Context, url string) (VerifyResult, error) {
	cmd := exec.CommandContext(ctx, YtDlpCmd, "--skip-download", "--simulate", url)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	output := stderr.String()

	if err == nil {
		return VerifyExists, nil
	}
	if isUnavailableOutput(output) {
		return VerifyNotFound, nil
	}
	return VerifyUnknown, nil
}

// classifyYtDlpError applies the teacher's text-match classification
// (internal/youtube.go's TooManyRequestsError / isImpersonationErrorNative)
// generalized to the three-way failure classification spec.md §4.E Phase 2
// requires: rate_limited, unavailable (permanent), download_error
// (transient).
func classifyYtDlpError(output string, cause error) error {
	lower := strings.ToLower(output)
	switch {
	case strings.Contains(output, "429") || strings.Contains(lower, "too many requests"):
		return errs.Wrap(errs.KindProviderRateLimit, cause, "yt-dlp rate limited").WithRetryAfter(time.Hour)
	case isUnavailableOutput(output):
		return errs.Wrap(errs.KindProviderUnavailable, cause, "video unavailable").ForceRetryable(false)
	default:
		return errs.Wrap(errs.KindNetConnectionFailed, cause, "yt-dlp transient failure").ForceRetryable(true)
	}
}

func isUnavailableOutput(output string) bool {
	lower := strings.ToLower(output)
	return strings.Contains(lower, "video unavailable") ||
		strings.Contains(lower, "private video") ||
		strings.Contains(lower, "video has been removed") ||
		strings.Contains(lower, "this video is not available")
}

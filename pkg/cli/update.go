package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/blang/semver"
	"github.com/rhysd/go-github-selfupdate/selfupdate"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const updateRepo = "Fepozopo/halftone"

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVarP(&updateFlags.yes, "yes", "y", false, "Update without asking")
	updateCmd.Flags().BoolVar(&updateFlags.checkOnly, "check", false, "Only report the latest version")
}

var updateFlags struct {
	yes       bool
	checkOnly bool
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update halftone to the latest GitHub release",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		u := updater{
			apiURL: fmt.Sprintf("https://api.github.com/repos/%s/releases", updateRepo),
			client: &http.Client{Timeout: 10 * time.Second},
			out:    cmd.OutOrStdout(),
			in:     cmd.InOrStdin(),
			yes:    updateFlags.yes,
			check:  updateFlags.checkOnly,
			apply:  applyUpdate,
		}
		return u.run(cmd.Context())
	},
}

type githubRelease struct {
	TagName    string `json:"tag_name"`
	Name       string `json:"name"`
	Draft      bool   `json:"draft"`
	Prerelease bool   `json:"prerelease"`
	Assets     []struct {
		Name               string `json:"name"`
		BrowserDownloadURL string `json:"browser_download_url"`
	} `json:"assets"`
}

var semverRe = regexp.MustCompile(`v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?`)

// latestRelease picks the highest published, non-prerelease version whose
// tag (or name) contains a semantic version. Assets mentioning an OS or
// architecture are preferred over the first asset.
func latestRelease(releases []githubRelease) (*selfupdate.Release, bool) {
	var found []*selfupdate.Release
	for _, r := range releases {
		if r.Draft || r.Prerelease {
			continue
		}
		match := semverRe.FindString(r.TagName)
		if match == "" {
			if match = semverRe.FindString(r.Name); match == "" {
				continue
			}
		}
		v, err := semver.Parse(strings.TrimPrefix(match, "v"))
		if err != nil {
			continue
		}
		rel := &selfupdate.Release{Version: v}
		for _, a := range r.Assets {
			name := strings.ToLower(a.Name)
			if rel.AssetURL == "" {
				rel.AssetURL = a.BrowserDownloadURL
			}
			if strings.Contains(name, "linux") || strings.Contains(name, "darwin") ||
				strings.Contains(name, "windows") || strings.Contains(name, "amd64") ||
				strings.Contains(name, "arm64") {
				rel.AssetURL = a.BrowserDownloadURL
				break
			}
		}
		found = append(found, rel)
	}
	if len(found) == 0 {
		return nil, false
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].Version.GT(found[j].Version)
	})
	return found[0], true
}

type updater struct {
	apiURL string
	client *http.Client
	out    io.Writer
	in     io.Reader
	yes    bool
	check  bool
	apply  func(assetURL string) error
}

func (u updater) releases(ctx context.Context) ([]githubRelease, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("github API returned status %d: %s", resp.StatusCode, string(body))
	}
	var releases []githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("failed to decode github releases: %w", err)
	}
	return releases, nil
}

func (u updater) run(ctx context.Context) error {
	fmt.Fprintf(u.out, "Current version: %s\n", Version)
	releases, err := u.releases(ctx)
	if err != nil {
		return fmt.Errorf("update check failed: %w", err)
	}
	latest, ok := latestRelease(releases)
	if !ok {
		fmt.Fprintf(u.out, "No releases found for %s.\n", updateRepo)
		return nil
	}
	fmt.Fprintf(u.out, "Latest version: %s\n", latest.Version)

	current, err := semver.Parse(strings.TrimPrefix(Version, "v"))
	if err != nil {
		log.WithError(err).WithField("version", Version).Warn("current version is not semver")
	} else if !latest.Version.GT(current) {
		fmt.Fprintf(u.out, "You are already running the latest version: %s.\n", current)
		return nil
	}
	if u.check {
		return nil
	}
	if latest.AssetURL == "" {
		fmt.Fprintf(u.out, "Version %s has no downloadable asset, see https://github.com/%s/releases\n",
			latest.Version, updateRepo)
		return nil
	}

	if !u.yes {
		fmt.Fprintf(u.out, "A new version (%s) is available. Update now? (y/N): ", latest.Version)
		line, err := bufio.NewReader(u.in).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed reading input: %w", err)
		}
		if a := strings.ToLower(strings.TrimSpace(line)); a != "y" && a != "yes" {
			fmt.Fprintln(u.out, "Update cancelled.")
			return nil
		}
	}

	fmt.Fprintln(u.out, "Updating...")
	if err := u.apply(latest.AssetURL); err != nil {
		return fmt.Errorf("update failed: %w", err)
	}
	fmt.Fprintf(u.out, "Updated to version %s.\n", latest.Version)
	return nil
}

func applyUpdate(assetURL string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("could not locate executable: %w", err)
	}
	return selfupdate.UpdateTo(assetURL, exe)
}

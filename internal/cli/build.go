package cli

import (
	"archive/tar"
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/profile"
)

var buildTag string

var buildCmd = &cobra.Command{
	Use:   "build <profile>",
	Short: "Build a profile's Dockerfile locally instead of relying on the registry copy",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := profile.Get(args[0])
		if err != nil {
			return err
		}

		tag := buildTag
		if tag == "" {
			tag = p.Image
		}

		buildContext, err := dockerfileTar(p.Dockerfile)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		if err := a.eng.ImageBuild(cmd.Context(), buildContext, tag); err != nil {
			return err
		}
		fmt.Printf("built %s\n", tag)
		return nil
	},
}

// dockerfileTar packs a single Dockerfile into the minimal tar stream
// the engine's /build endpoint expects as its build context.
func dockerfileTar(dockerfile string) (*bytes.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	content := []byte(dockerfile)
	hdr := &tar.Header{Name: "Dockerfile", Mode: 0644, Size: int64(len(content))}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, err
	}
	if _, err := tw.Write(content); err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}

func init() {
	buildCmd.Flags().StringVar(&buildTag, "tag", "", "Image tag to build (default: the profile's catalog image)")
	RootCmd.AddCommand(buildCmd)
}

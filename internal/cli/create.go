package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/deftio/pocketdock/internal/profile"
	"github.com/deftio/pocketdock/internal/project"
	"github.com/deftio/pocketdock/internal/sandbox"
)

var createOpts struct {
	name       string
	profile    string
	image      string
	mem        string
	cpu        float64
	binds      []string
	env        []string
	persist    bool
	networking bool
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create and start a new sandbox container",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}

		image := createOpts.image
		prof := createOpts.profile
		if prof == "" && a.proj != nil && a.proj.Config.DefaultProfile != "" {
			prof = a.proj.Config.DefaultProfile
		}
		if image == "" {
			if prof == "" {
				prof = "dev"
			}
			p, err := profile.Get(prof)
			if err != nil {
				return err
			}
			image = p.Image
		}

		mem, err := parseMemory(createOpts.mem)
		if err != nil {
			return err
		}

		persist := createOpts.persist
		if !cmd.Flags().Changed("persist") && a.proj != nil {
			persist = a.proj.Config.DefaultPersist
		}

		name := createOpts.name
		if name == "" {
			name = generateName()
		}

		projectName, dataPath := "", ""
		if a.proj != nil {
			projectName = a.proj.Root
			dataPath = a.proj.DataPath(name)
		}

		spec := sandbox.CreateSpec{
			Image:            image,
			Env:              parseEnv(createOpts.env),
			MemoryBytes:      mem,
			NanoCPUs:         parseNanoCPUs(createOpts.cpu),
			Binds:            createOpts.binds,
			EnableNetworking: createOpts.networking,
			Name:             name,
			Profile:          prof,
			Project:          projectName,
			DataPath:         dataPath,
			Persist:          persist,
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 60*time.Second)
		defer cancel()

		h, err := a.mgr.Create(ctx, spec)
		if err != nil {
			return err
		}

		if a.proj != nil {
			meta := project.InstanceMetadata{
				ID:          h.ID,
				ContainerID: h.ID,
				Name:        name,
				Profile:     prof,
				Image:       image,
				Project:     projectName,
				Persist:     persist,
				DataPath:    dataPath,
				CreatedAt:   time.Now(),
				MemLimit:    mem,
			}
			if err := project.SaveInstance(a.proj.Root, meta); err != nil {
				log.Warn().Err(err).Msg("failed to save instance metadata")
			}
		}

		fmt.Printf("%s\t%s\n", h.ID[:12], name)
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createOpts.name, "name", "", "Container name (default: auto-generated pd-xxxxxxxx)")
	createCmd.Flags().StringVar(&createOpts.profile, "profile", "", "Image profile: minimal, dev, agent, embedded (default: dev)")
	createCmd.Flags().StringVar(&createOpts.image, "image", "", "Explicit image reference, overrides --profile")
	createCmd.Flags().StringVar(&createOpts.mem, "mem", "", "Memory limit, e.g. 512m, 1g")
	createCmd.Flags().Float64Var(&createOpts.cpu, "cpu", 0, "CPU limit in fractional cores, e.g. 1.5")
	createCmd.Flags().StringSliceVar(&createOpts.binds, "bind", nil, "Bind mount host:container[:ro] (repeatable)")
	createCmd.Flags().StringSliceVarP(&createOpts.env, "env", "e", nil, "Environment variable KEY=VALUE (repeatable)")
	createCmd.Flags().BoolVar(&createOpts.persist, "persist", false, "Stop instead of remove on shutdown")
	createCmd.Flags().BoolVar(&createOpts.networking, "net", false, "Enable outbound networking")
	RootCmd.AddCommand(createCmd)
}

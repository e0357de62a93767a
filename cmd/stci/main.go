package main

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/ioutil"
	"log"
	"os"

	"github.com/bodgit/stci"
	"github.com/bodgit/stci/pixel"
	"github.com/urfave/cli/v2"
)

func init() {
	cli.VersionFlag = &cli.BoolFlag{
		Name:  "version, V",
		Usage: "print the version",
	}
}

func openImage(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	return m, err
}

func printInfo(file string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	sti, err := stci.Load(f)
	if err != nil {
		return err
	}

	h := sti.Header
	fmt.Printf("%s: %dx%d, %d bpp, flags %#08x\n", file, h.Width, h.Height, h.ColorDepth, h.Flags)

	if sti.Truecolor != nil {
		s := sti.Truecolor.Spec
		fmt.Printf("  truecolor, masks r=%#x g=%#x b=%#x a=%#x\n", s.R.Mask, s.G.Mask, s.B.Mask, s.A.Mask)
		return nil
	}

	fmt.Printf("  indexed, canvas %dx%d, %d frame(s)\n", sti.Indexed.Width, sti.Indexed.Height, len(sti.Indexed.SubImages))
	for i, s := range sti.Indexed.SubImages {
		fmt.Printf("  frame %d: %dx%d at (%d,%d)", i, s.Width, s.Height, s.OffsetX, s.OffsetY)
		if s.Aux != nil {
			fmt.Printf(", tile %d/%d", s.Aux.CurrentFrame, s.Aux.NumberOfFrames)
		}
		fmt.Println()
	}

	return nil
}

func main() {
	app := cli.NewApp()

	app.Name = "stci"
	app.Usage = "STCI sprite container utility"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		&cli.BoolFlag{
			Name:  "verbose, v",
			Usage: "increase verbosity",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:        "info",
			Usage:       "Print container structure",
			Description: "",
			ArgsUsage:   "FILE...",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				for _, file := range c.Args().Slice() {
					if err := printInfo(file); err != nil {
						return cli.NewExitError(err, 1)
					}
				}

				return nil
			},
		},
		{
			Name:        "export",
			Usage:       "Extract STI files under a directory to PNG",
			Description: "",
			ArgsUsage:   "DIRECTORY",
			Action: func(c *cli.Context) error {
				if c.NArg() < 1 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				logger := log.New(ioutil.Discard, "", 0)
				if c.Bool("verbose") {
					logger.SetOutput(os.Stderr)
				}

				if err := stci.NewExtractor(logger).ExtractDir(c.Args().First()); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
		{
			Name:        "create",
			Usage:       "Create an STI file from one or more images",
			Description: "Without --etrle a single input image is stored as a truecolor container; with --etrle all inputs become compressed frames sharing one palette.",
			ArgsUsage:   "OUTPUT INPUT...",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "etrle",
					Usage: "write a compressed indexed container",
				},
				&cli.BoolFlag{
					Name:  "opaque",
					Usage: "force semi-transparent pixels opaque",
				},
				&cli.BoolFlag{
					Name:  "transparent",
					Usage: "force semi-transparent pixels transparent",
				},
			},
			Action: func(c *cli.Context) error {
				if c.NArg() < 2 {
					cli.ShowCommandHelpAndExit(c, c.Command.FullName(), 1)
				}

				out, err := os.Create(c.Args().First())
				if err != nil {
					return cli.NewExitError(err, 1)
				}
				defer out.Close()

				if !c.Bool("etrle") {
					m, err := openImage(c.Args().Get(1))
					if err != nil {
						return cli.NewExitError(err, 1)
					}
					if err := stci.SaveTruecolor(out, m, pixel.Spec{}); err != nil {
						return cli.NewExitError(err, 1)
					}
					return nil
				}

				var frames []stci.Frame
				for _, file := range c.Args().Slice()[1:] {
					m, err := openImage(file)
					if err != nil {
						return cli.NewExitError(err, 1)
					}
					frames = append(frames, stci.Frame{Image: m})
				}

				opts := &stci.SaveOptions{}
				switch {
				case c.Bool("opaque"):
					opts.SemiTransparent = stci.ForceOpaque
				case c.Bool("transparent"):
					opts.SemiTransparent = stci.ForceTransparent
				}

				if err := stci.SaveETRLE(out, frames, opts); err != nil {
					return cli.NewExitError(err, 1)
				}

				return nil
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

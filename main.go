package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BertoldVdb/spinor/config"
	"github.com/BertoldVdb/spinor/flashtasks"
	"github.com/BertoldVdb/spinor/image"
	"github.com/BertoldVdb/spinor/logger"
	"github.com/BertoldVdb/spinor/memory"
	"github.com/BertoldVdb/spinor/norflash"
	"github.com/BertoldVdb/spinor/spiconn"
	getopt "github.com/pborman/getopt/v2"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

const defaultDevice = "model: mt25q\nsize: 16M\n"

var errorUsage = errors.New("invalid arguments")

const commandHelp = `
Commands:
  id                        print the JEDEC ID and detected part
  sfdp [length]             hex dump the SFDP table
  read <address> <length>   hex dump a region
  dump <file>               save the complete contents
  write <file>              erase the chip and write file from address 0
  program <address> <file>  replace a region, keeping the rest of its blocks
  erase                     erase the chip
`

func parseNumber(s string) (uint32, error) {
	size, err := config.ParseSize(s)
	if err != nil || size > 0xFFFFFFFF {
		return 0, fmt.Errorf("%w: %q is not a number", errorUsage, s)
	}
	return uint32(size), nil
}

func loadDevice(path string, backing string) (*config.Device, error) {
	var d *config.Device
	var err error
	if path != "" {
		d, err = config.Load(path)
	} else {
		d, err = config.Parse([]byte(defaultDevice))
	}
	if err != nil {
		return nil, err
	}

	if backing != "" {
		d.Backing = backing
	}
	return d, nil
}

func runCommand(tasks *flashtasks.Tasks, args []string) error {
	flash := tasks.Flash()

	switch args[0] {
	case "id":
		fmt.Printf("%x %s, %d bytes\n", flash.DeviceID(), flash.Name(), flash.Size())
		return nil

	case "sfdp":
		length := uint32(16)
		if len(args) > 1 {
			var err error
			if length, err = parseNumber(args[1]); err != nil {
				return err
			}
		}
		buf := make([]byte, length)
		if _, err := flash.SFDPRead(0, buf); err != nil {
			return err
		}
		fmt.Print(hex.Dump(buf))
		return nil

	case "read":
		if len(args) != 3 {
			return errorUsage
		}
		address, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		length, err := parseNumber(args[2])
		if err != nil {
			return err
		}
		buf := make([]byte, length)
		if _, err := flash.Read(address, buf); err != nil {
			return err
		}
		fmt.Print(hex.Dump(buf))
		return nil

	case "dump":
		if len(args) != 2 {
			return errorUsage
		}
		data, err := tasks.ImageRead()
		if err != nil {
			return err
		}
		return os.WriteFile(args[1], data, 0644)

	case "write":
		if len(args) != 2 {
			return errorUsage
		}
		data, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		return tasks.ImageWrite(data, true)

	case "program":
		if len(args) != 3 {
			return errorUsage
		}
		address, err := parseNumber(args[1])
		if err != nil {
			return err
		}
		data, err := os.ReadFile(args[2])
		if err != nil {
			return err
		}
		return tasks.Program(address, data, true)

	case "erase":
		return tasks.Erase()
	}

	return fmt.Errorf("%w: unknown command %s", errorUsage, args[0])
}

func run(log *slog.Logger, device *config.Device, load string, save string, args []string) error {
	store, err := device.Open()
	if err != nil {
		return err
	}
	if m, ok := store.(*memory.Mapped); ok {
		defer m.Close()
	}

	if load != "" {
		if err := image.LoadFile(load, store); err != nil {
			return err
		}
		log.Info("Snapshot loaded", "file", load)
	}

	dev, err := device.Build(store, log)
	if err != nil {
		return err
	}

	name := device.Name
	if name == "" {
		name = device.Model
	}
	port := spiconn.NewPort(name, dev)
	port.SetLogger(log)
	c, err := port.Connect(50*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return err
	}

	tasks, err := flashtasks.NewFromConn(c)
	if err != nil {
		return err
	}
	tasks.SetLogger(log)

	if err := runCommand(tasks, args); err != nil {
		return err
	}

	if save != "" {
		if err := image.SaveFile(save, store); err != nil {
			return err
		}
		log.Info("Snapshot saved", "file", save)
	}
	if m, ok := store.(*memory.Mapped); ok {
		return m.Sync()
	}
	return nil
}

// runMain returns the exit code, so deferred cleanup runs before main
// exits.
func runMain(args []string) int {
	opts := getopt.New()
	optConfig := opts.StringLong("config", 'c', "", "Device description (YAML)")
	optBacking := opts.StringLong("image", 'i', "", "Map the flash contents onto this file")
	optLoad := opts.StringLong("load", 'l', "", "Load a snapshot before running the command")
	optSave := opts.StringLong("save", 's', "", "Save a snapshot after running the command")
	optLogFile := opts.StringLong("log", 'L', "", "Log file")
	optDebug := opts.BoolLong("debug", 'd', "Log debug to console")
	optNoisy := opts.BoolLong("noisy", 'n', "Trace every byte on the bus")
	optHelp := opts.BoolLong("help", 'h', "Help")

	usage := func() {
		opts.PrintUsage(os.Stderr)
		fmt.Fprint(os.Stderr, commandHelp)
	}

	if err := opts.Getopt(args, nil); err != nil {
		fmt.Fprintln(os.Stderr, err)
		usage()
		return 2
	}

	if *optHelp {
		usage()
		return 0
	}

	var file *os.File
	if *optLogFile != "" {
		var err error
		if file, err = os.Create(*optLogFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer file.Close()
	}

	programLevel := new(slog.LevelVar)
	programLevel.Set(slog.LevelInfo)
	if *optDebug {
		programLevel.Set(slog.LevelDebug)
	}
	if *optNoisy {
		programLevel.Set(norflash.LevelNoisy)
	}

	handler := logger.NewHandler(nil, programLevel, *optDebug || *optNoisy)
	if file != nil {
		handler = logger.NewHandler(file, programLevel, *optDebug || *optNoisy)
	}
	log := slog.New(handler)
	slog.SetDefault(log)

	cmd := opts.Args()
	if len(cmd) == 0 {
		usage()
		return 2
	}

	device, err := loadDevice(*optConfig, *optBacking)
	if err == nil {
		err = run(log, device, *optLoad, *optSave, cmd)
	}
	if err != nil {
		log.Error(err.Error())
		if errors.Is(err, errorUsage) {
			usage()
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(os.Args))
}

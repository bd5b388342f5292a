// weatherctl is an interactive CLI for a running weatherd server.
//
// With arguments it runs a single command and exits; without, and when
// stdin is a terminal, it drops into a REPL with completion.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/weatherd/internal/client"
	"github.com/xtxerr/weatherd/internal/reading"
)

// Version is set at build time via ldflags
var Version = "dev"

var commands = []prompt.Suggest{
	{Text: "recent", Description: "Show recent readings: recent [limit]"},
	{Text: "avg", Description: "Hourly average temperature: avg [sensor_id]"},
	{Text: "submit", Description: "Submit a reading: submit <sensor_id> <temperature>"},
	{Text: "status", Description: "Show server status"},
	{Text: "health", Description: "Check server health"},
	{Text: "simulate", Description: "Generate synthetic data: simulate [sensors] [per_sensor]"},
	{Text: "clear", Description: "Delete all readings"},
	{Text: "help", Description: "Show available commands"},
	{Text: "quit", Description: "Exit"},
}

type cli struct {
	client *client.Client
}

func main() {
	server := flag.String("server", "http://localhost:8000", "weatherd server URL")
	flag.Parse()

	c := &cli{client: client.New(*server)}

	// One-shot mode: weatherctl avg sensor_01
	if flag.NArg() > 0 {
		if !c.execute(flag.Args()) {
			os.Exit(1)
		}
		return
	}

	// Piped input gets a plain line reader, no prompt escape codes.
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return
			}
			c.execute(fields)
		}
		return
	}

	fmt.Printf("weatherctl %s — connected to %s\n", Version, *server)
	fmt.Println("Type 'help' for commands, 'quit' to exit.")

	p := prompt.New(
		c.executor,
		completer,
		prompt.OptionTitle("weatherctl"),
		prompt.OptionPrefix("weatherctl> "),
		prompt.OptionPrefixTextColor(prompt.Cyan),
	)
	p.Run()
}

func completer(d prompt.Document) []prompt.Suggest {
	if d.TextBeforeCursor() == "" {
		return nil
	}
	// Complete the command word only, not its arguments.
	if strings.Contains(strings.TrimSpace(d.TextBeforeCursor()), " ") {
		return nil
	}
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}

func (c *cli) executor(line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	if fields[0] == "quit" || fields[0] == "exit" {
		os.Exit(0)
	}
	c.execute(fields)
}

// execute runs one command; returns false on error.
func (c *cli) execute(args []string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var err error
	switch args[0] {
	case "recent":
		err = c.cmdRecent(ctx, args[1:])
	case "avg":
		err = c.cmdAverage(ctx, args[1:])
	case "submit":
		err = c.cmdSubmit(ctx, args[1:])
	case "status":
		err = c.cmdStatus(ctx)
	case "health":
		err = c.cmdHealth(ctx)
	case "simulate":
		err = c.cmdSimulate(ctx, args[1:])
	case "clear":
		err = c.cmdClear(ctx)
	case "help":
		c.cmdHelp()
	default:
		fmt.Printf("unknown command %q, try 'help'\n", args[0])
		return false
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
		return false
	}
	return true
}

func (c *cli) cmdRecent(ctx context.Context, args []string) error {
	limit := 0
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("limit must be a number: %q", args[0])
		}
		limit = n
	}

	resp, err := c.client.RecentReadings(ctx, limit)
	if err != nil {
		return err
	}
	if resp.Count == 0 {
		fmt.Println("no readings")
		return nil
	}

	fmt.Printf("%-12s %-10s %s\n", "SENSOR", "TEMP", "TIMESTAMP")
	for _, r := range resp.Readings {
		fmt.Printf("%-12s %-10.1f %s\n",
			r.SensorID, r.Temperature, r.Timestamp.Local().Format("2006-01-02 15:04:05"))
	}
	return nil
}

func (c *cli) cmdAverage(ctx context.Context, args []string) error {
	sensorID := ""
	if len(args) > 0 {
		sensorID = args[0]
	}

	result, err := c.client.AverageHour(ctx, sensorID)
	if err != nil {
		return err
	}

	scope := "all sensors"
	if sensorID != "" {
		scope = sensorID
	}
	fmt.Printf("average (%s): %.2f°C over %d readings [%s]\n",
		scope, result.Average, result.Count, result.Source)
	return nil
}

func (c *cli) cmdSubmit(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: submit <sensor_id> <temperature>")
	}
	temp, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("temperature must be a number: %q", args[1])
	}

	if err := c.client.SubmitReading(ctx, reading.Reading{
		SensorID:    args[0],
		Temperature: temp,
	}); err != nil {
		return err
	}
	fmt.Printf("accepted: %s %.1f°C\n", args[0], temp)
	return nil
}

func (c *cli) cmdStatus(ctx context.Context) error {
	status, err := c.client.Status(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("total readings:     %v\n", status["total_readings"])
	fmt.Printf("readings last hour: %v\n", status["readings_last_hour"])
	if cacheInfo, ok := status["cache"].(map[string]any); ok {
		fmt.Printf("cache:              %v/%v\n", cacheInfo["size"], cacheInfo["capacity"])
	}
	if poolInfo, ok := status["pool"].(map[string]any); ok {
		fmt.Printf("pool:               active=%v idle=%v max=%v\n",
			poolInfo["active"], poolInfo["idle"], poolInfo["max_conns"])
	}
	if dist, ok := status["temperature_distribution"].(map[string]any); ok {
		fmt.Printf("distribution:       p50=%.1f p90=%.1f p95=%.1f p99=%.1f (n=%v)\n",
			toFloat(dist["p50"]), toFloat(dist["p90"]),
			toFloat(dist["p95"]), toFloat(dist["p99"]), dist["count"])
	}
	return nil
}

func toFloat(v any) float64 {
	f, _ := v.(float64)
	return f
}

func (c *cli) cmdHealth(ctx context.Context) error {
	if err := c.client.Health(ctx); err != nil {
		return err
	}
	fmt.Println("healthy")
	return nil
}

func (c *cli) cmdSimulate(ctx context.Context, args []string) error {
	sensors, perSensor := 3, 60
	var err error
	if len(args) > 0 {
		if sensors, err = strconv.Atoi(args[0]); err != nil {
			return fmt.Errorf("sensors must be a number: %q", args[0])
		}
	}
	if len(args) > 1 {
		if perSensor, err = strconv.Atoi(args[1]); err != nil {
			return fmt.Errorf("per_sensor must be a number: %q", args[1])
		}
	}

	written, err := c.client.Simulate(ctx, sensors, perSensor)
	if err != nil {
		return err
	}
	fmt.Printf("wrote %d synthetic readings\n", written)
	return nil
}

func (c *cli) cmdClear(ctx context.Context) error {
	deleted, err := c.client.DeleteReadings(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d readings\n", deleted)
	return nil
}

func (c *cli) cmdHelp() {
	for _, cmd := range commands {
		fmt.Printf("  %-10s %s\n", cmd.Text, cmd.Description)
	}
}

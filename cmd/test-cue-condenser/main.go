package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dpup/geonav/server/internal/lib/guidance"
)

const defaultModel = "gpt-4o-mini"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "condense":
		handleCondense()
	case "test-connection":
		handleTestConnection()
	case "test-prompt":
		handleTestPrompt()
	case "help":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleCondense() {
	fs := flag.NewFlagSet("condense", flag.ExitOnError)
	instruction := fs.String("instruction", "", "Raw step instruction, may contain HTML markup")
	apiKey := fs.String("api-key", os.Getenv("PF__GUIDANCE__OPENAI_API_KEY"), "OpenAI API key (or set PF__GUIDANCE__OPENAI_API_KEY env var)")
	model := fs.String("model", defaultModel, "OpenAI model to use")
	rule := fs.Bool("rule", false, "Use the rule-based condenser instead of OpenAI")
	timeout := fs.Int("timeout", 30, "Timeout in seconds")

	fs.Parse(os.Args[2:])

	if *instruction == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-cue-condenser condense --instruction \"Turn <b>left</b> onto <b>Ocean Avenue</b>\"")
		fmt.Println("  test-cue-condenser condense --instruction \"raw text\" --rule")
		os.Exit(1)
	}

	var condenser guidance.Condenser
	if *rule {
		condenser = guidance.NewRuleCondenser()
	} else {
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Set PF__GUIDANCE__OPENAI_API_KEY environment variable, use --api-key or pass --rule")
		}
		condenser = guidance.NewOpenAICondenser(*apiKey, *model)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	fmt.Printf("Condensing instruction...\n")
	fmt.Printf("  Raw: %s\n", *instruction)
	fmt.Printf("  Plain: %s\n", guidance.StripMarkup(*instruction))
	if !*rule {
		fmt.Printf("  Using model: %s\n", *model)
	}
	fmt.Printf("\n")

	cue, err := condenser.Condense(ctx, *instruction)
	if err != nil {
		log.Fatalf("Error condensing instruction: %v", err)
	}

	fmt.Printf("✅ Cue condensed successfully!\n\n")
	fmt.Printf("CUE:\n")
	fmt.Printf("  Text: %s\n", cue.Text)
	fmt.Printf("  Maneuver: %s\n", cue.Maneuver)
	if cue.Street != "" {
		fmt.Printf("  Street: %s\n", cue.Street)
	}
	fmt.Printf("  Source: %s\n", cue.Source)
	fmt.Printf("  Length: %d of %d characters\n", utf8.RuneCountInString(cue.Text), guidance.MaxCueLength)
}

func handleTestConnection() {
	fs := flag.NewFlagSet("test-connection", flag.ExitOnError)
	apiKey := fs.String("api-key", os.Getenv("PF__GUIDANCE__OPENAI_API_KEY"), "OpenAI API key to test")
	model := fs.String("model", defaultModel, "OpenAI model to test")
	timeout := fs.Int("timeout", 10, "Timeout in seconds")

	fs.Parse(os.Args[2:])

	if len(*apiKey) < 12 {
		log.Fatal("OpenAI API key is required. Set PF__GUIDANCE__OPENAI_API_KEY environment variable or use --api-key flag")
	}

	condenser := guidance.NewOpenAICondenser(*apiKey, *model)
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(*timeout)*time.Second)
	defer cancel()

	fmt.Printf("Testing OpenAI API connection...\n")
	fmt.Printf("  API Key: %s...%s\n", (*apiKey)[:8], (*apiKey)[len(*apiKey)-4:])
	fmt.Printf("  Model: %s\n", *model)
	fmt.Printf("  Timeout: %d seconds\n\n", *timeout)

	if err := condenser.HealthCheck(ctx); err != nil {
		fmt.Printf("❌ Connection test failed: %v\n", err)

		errStr := err.Error()
		if strings.Contains(errStr, "401") {
			fmt.Printf("\n💡 This looks like an authentication error. Please check:\n")
			fmt.Printf("   - Your API key is correct\n")
			fmt.Printf("   - Your OpenAI account has credits available\n")
		} else if strings.Contains(errStr, "429") {
			fmt.Printf("\n💡 This looks like a rate limit error. Wait a moment and try again.\n")
		}

		os.Exit(1)
	}

	fmt.Printf("✅ Connection test successful!\n")
	fmt.Printf("   Ready to condense cues\n")
}

func handleTestPrompt() {
	fs := flag.NewFlagSet("test-prompt", flag.ExitOnError)
	rawFile := fs.String("raw-file", "", "Path to file containing raw instructions (one per line)")
	apiKey := fs.String("api-key", os.Getenv("PF__GUIDANCE__OPENAI_API_KEY"), "OpenAI API key")
	model := fs.String("model", defaultModel, "OpenAI model to use")
	count := fs.Int("count", 5, "Number of instructions to test")

	fs.Parse(os.Args[2:])

	if *rawFile == "" {
		fmt.Println("Example usage:")
		fmt.Println("  test-cue-condenser test-prompt --raw-file instructions.txt --count 3")
		fmt.Println("")
		fmt.Println("Sample instructions.txt content:")
		fmt.Println("  Head <b>north</b> on <b>Main St</b> toward <b>1st Ave</b>")
		fmt.Println("  Turn <b>right</b> onto <b>Ocean Avenue</b>")
		fmt.Println("  Take the ramp onto <b>I-280 S</b><div>Toll road</div>")
		os.Exit(1)
	}

	if *apiKey == "" {
		log.Fatal("OpenAI API key is required. Set PF__GUIDANCE__OPENAI_API_KEY environment variable or use --api-key flag")
	}

	data, err := os.ReadFile(*rawFile)
	if err != nil {
		log.Fatalf("Error reading file %s: %v", *rawFile, err)
	}

	var instructions []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			instructions = append(instructions, line)
		}
	}

	if len(instructions) == 0 {
		log.Fatal("No instructions found in file")
	}
	if *count > len(instructions) {
		*count = len(instructions)
	}

	openAI := guidance.NewOpenAICondenser(*apiKey, *model)
	rule := guidance.NewRuleCondenser()
	ctx := context.Background()

	fmt.Printf("Testing prompt with %d instructions from %s\n", *count, *rawFile)
	fmt.Printf("Using model: %s\n\n", *model)

	successCount := 0
	for i := 0; i < *count; i++ {
		fmt.Printf("=== Test %d/%d ===\n", i+1, *count)
		fmt.Printf("Raw: %s\n", instructions[i])

		ruleCue, _ := rule.Condense(ctx, instructions[i])
		fmt.Printf("Rule:   %s\n", ruleCue.Text)

		cue, err := openAI.Condense(ctx, instructions[i])
		if err != nil {
			fmt.Printf("❌ Condense failed: %v\n\n", err)
			continue
		}

		fmt.Printf("OpenAI: %s (%d chars)\n\n", cue.Text, utf8.RuneCountInString(cue.Text))
		successCount++
	}

	fmt.Printf("Prompt test completed: %d/%d successful\n", successCount, *count)
}

func printUsage() {
	fmt.Printf(`test-cue-condenser - AR cue condensing testing tool

USAGE:
    test-cue-condenser <command> [options]

COMMANDS:
    condense          Condense one instruction into an overlay cue
    test-connection   Check the OpenAI API key and model
    test-prompt       Compare rule and OpenAI cues for a file of instructions
    help              Show this help message

ENVIRONMENT:
    PF__GUIDANCE__OPENAI_API_KEY   OpenAI API key

EXAMPLES:
    test-cue-condenser condense --instruction "Turn <b>left</b> onto <b>Ocean Avenue</b>"
    test-cue-condenser condense --instruction "Turn <b>left</b> onto <b>Ocean Avenue</b>" --rule
    test-cue-condenser test-connection
`)
}

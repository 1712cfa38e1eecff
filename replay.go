package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/circuitsaga/payvoice/mailtext"
	"github.com/circuitsaga/payvoice/mbox"
	"github.com/circuitsaga/payvoice/parse"
)

// replayCmd runs the payment extractor over an exported mbox archive, which
// is the easiest way to validate the parser against a real mailbox without
// touching the live account. Nothing is synthesized or pushed.
func replayCmd() *cobra.Command {
	var (
		senderToken string
		csvPath     string
	)

	cmd := &cobra.Command{
		Use:   "replay [mbox file]",
		Short: "Run the payment extractor over an exported mbox archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mboxPath := args[0]

			var (
				scanned   int
				skipped   int
				extracted int
				unmatched int
				records   [][]string
			)

			err := mbox.Read(mboxPath, func(m *mbox.Message) error {
				scanned++

				if senderToken != "" && !strings.Contains(m.From, senderToken) {
					skipped++
					return nil
				}

				body, err := mailtext.FirstPlain(m.Raw)
				if err != nil {
					body = string(m.Raw)
				}

				evt, found := parse.Extract(body)
				if !found {
					unmatched++
					return nil
				}

				extracted++
				records = append(records, []string{strconv.Itoa(m.Index), evt.Amount, evt.Sender})
				return nil
			})
			if err != nil {
				return fmt.Errorf("read mbox: %w", err)
			}

			fmt.Printf("Scanned %d messages: %d payments extracted, %d skipped by sender, %d without payment details\n",
				scanned, extracted, skipped, unmatched)
			for _, record := range records {
				fmt.Printf("  #%s  ₹%s from %s\n", record[0], record[1], record[2])
			}

			if csvPath != "" {
				if err := writeCSVReport(csvPath, records); err != nil {
					return fmt.Errorf("write csv report: %w", err)
				}
				fmt.Printf("Report saved to: %s\n", csvPath)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&senderToken, "sender", "no-reply@famapp.in", "Substring the From header must contain (empty matches all)")
	cmd.Flags().StringVar(&csvPath, "csv", "", "Write extracted events to a CSV file")

	return cmd
}

func writeCSVReport(path string, records [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"index", "amount", "sender"}); err != nil {
		return err
	}
	for _, record := range records {
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

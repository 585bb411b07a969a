package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/composedlabyrinth/SwiftKYC/internal/app"
	"github.com/composedlabyrinth/SwiftKYC/internal/config"
	"github.com/composedlabyrinth/SwiftKYC/internal/docnumber"
	"github.com/composedlabyrinth/SwiftKYC/internal/identity"
	"github.com/composedlabyrinth/SwiftKYC/internal/model"
	"github.com/composedlabyrinth/SwiftKYC/internal/quality"
	"github.com/composedlabyrinth/SwiftKYC/internal/queue"
)

func newInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Run pipeline stages against a local image",
	}
	cmd.AddCommand(newInspectQualityCmd(), newInspectOCRCmd())
	return cmd
}

func newInspectQualityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "quality <image>",
		Short: "Score an image with the document quality gate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := quality.New().Evaluate(data)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{
				"accepted": res.Accepted,
				"check":    res.Check,
				"score":    res.Score,
				"reason":   res.Reason,
			})
		},
	}
}

func newInspectOCRCmd() *cobra.Command {
	var docTypeRaw, name, number string
	cmd := &cobra.Command{
		Use:   "ocr <image>",
		Short: "Extract the document number and name with Tesseract",
		Long: `Runs OCR over the image and prints the fields read from it. When --name or
--number is given the result is also compared the way document validation does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			docType, err := model.ParseDocType(docTypeRaw)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			res, err := app.NewExtractor(cfg).Extract(cmd.Context(), data, docType)
			if err != nil {
				return err
			}
			out := map[string]any{
				"doc_type":        docType,
				"document_number": res.DocumentNumber,
				"name":            res.Name,
				"confidence":      res.QualityScore,
				"raw_text":        res.RawText,
			}
			if name != "" || number != "" {
				if number != "" && docnumber.Supported(docType) {
					if number, err = docnumber.Parse(docType, number); err != nil {
						return err
					}
				}
				m := app.NewMatcher(cfg).Match(identity.Input{
					DocType:       docType,
					EnteredNumber: number,
					OCRNumber:     res.DocumentNumber,
					EnteredName:   name,
					OCRName:       res.Name,
				})
				out["match"] = map[string]any{
					"accepted":     m.Accepted(),
					"number_match": m.NumberMatch,
					"name_match":   m.NameMatch,
					"combined":     m.Combined,
					"reasons":      m.Reasons,
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVar(&docTypeRaw, "doc-type", string(model.DocTypeAlphanum10), "Document type to extract")
	cmd.Flags().StringVar(&name, "name", "", "Customer name to compare against")
	cmd.Flags().StringVar(&number, "number", "", "Entered document number to compare against")
	return cmd
}

func newRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <session-id>",
		Short: "Enqueue a face-match job for a session stuck at KYC_CHECK",
		Long: `Pushes a face-match job to Redis without checking the session. The worker
skips sessions that are no longer waiting for a face match.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			client := asynq.NewClient(asynq.RedisClientOpt{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			defer client.Close()
			if err := queue.NewEnqueuer(client, cfg.JobMaxRetry).EnqueueFaceMatch(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued face match for %s\n", args[0])
			return nil
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

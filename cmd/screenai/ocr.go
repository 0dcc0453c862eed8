package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"screenai-backend/internal/credentials"
	"screenai-backend/internal/services"
)

var ocrEndpoint string

var ocrCmd = &cobra.Command{
	Use:   "ocr <image>",
	Short: "Extract text from an image file with OCR.space",
	Long:  `Reads OCR_SPACE_API_KEY from the environment and prints the recognized text.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		if services.DetectImageType(data) == "" {
			return fmt.Errorf("%s is not an image", args[0])
		}

		key, err := credentials.NewEnvStore().Get(cmd.Context(), credentials.ProviderOCRSpace)
		if err != nil {
			return err
		}

		log := newLogger()
		defer log.Sync()

		text, err := services.NewOCRService(ocrEndpoint, log).
			Recognize(cmd.Context(), key, base64.StdEncoding.EncodeToString(data))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

func init() {
	ocrCmd.Flags().StringVar(&ocrEndpoint, "endpoint", services.DefaultOCREndpoint, "OCR.space parse endpoint")
}

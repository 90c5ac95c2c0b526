package main

import (
	"fmt"
	"os"
	"strings"

	"gitee.com/flycash/notification-governance/internal/service/export"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "exportverify",
		Short:         "离线校验监管审计导出包",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newVerifyCmd())
	return root
}

func newVerifyCmd() *cobra.Command {
	var publicKeyPath string
	cmd := &cobra.Command{
		Use:   "verify <pack.zip>",
		Short: "重新计算每个文件的哈希，校验 manifest.sha256.txt 与签名",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pack, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var publicKey []byte
			if publicKeyPath != "" {
				publicKey, err = os.ReadFile(publicKeyPath)
				if err != nil {
					return err
				}
			}
			report, err := export.Verify(pack, publicKey)
			out := cmd.OutOrStdout()
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "FAIL %s\n%v\n", args[0], err)
				return err
			}
			fmt.Fprintf(out, "OK %s\n", args[0])
			fmt.Fprintf(out, "manifest sha256: %s\n", report.ManifestSHA256)
			fmt.Fprintf(out, "canonical hash:  %s\n", report.Manifest.CanonicalHash)
			fmt.Fprintf(out, "scope:           %s\n", report.Manifest.Scope)
			names := make([]string, 0, len(report.Manifest.Files))
			for _, f := range report.Manifest.Files {
				names = append(names, f.Name)
			}
			fmt.Fprintf(out, "files:           %s\n", strings.Join(names, ", "))
			if report.SignatureChecked {
				fmt.Fprintln(out, "signature:       valid")
			} else {
				fmt.Fprintln(out, "signature:       not checked")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&publicKeyPath, "public-key", "", "PEM 格式的公钥文件，给出时同时校验 manifest.sig")
	return cmd
}

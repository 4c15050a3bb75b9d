// connaudit scans the email connections table and reports rows that cannot
// survive a token expiry: connections with no refresh token, or with an empty
// access token. Run it before rotating OAuth client secrets so affected
// senders can be asked to reconnect.
//
// Usage:
//
//	go run ./scripts/connaudit
//
// Environment: AWS_REGION, CONNECTIONS_TABLE (default email_connections),
// AWS_ENDPOINT_OVERRIDE for LocalStack.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"

	"github.com/veldmed/practice-platform/cmd/mainconfig"
	appconfig "github.com/veldmed/practice-platform/internal/config"
	"github.com/veldmed/practice-platform/internal/connections"
)

func main() {
	cfg := appconfig.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		fmt.Printf("Error loading AWS config: %v\n", err)
		os.Exit(1)
	}
	client := dynamodb.NewFromConfig(awsCfg)

	fmt.Printf("Auditing table %s...\n", cfg.ConnectionsTable)

	var total, noRefresh, noAccess int

	paginator := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{
		TableName: aws.String(cfg.ConnectionsTable),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			fmt.Printf("Error scanning table: %v\n", err)
			os.Exit(1)
		}
		for _, item := range page.Items {
			var conn connections.EmailConnection
			if err := attributevalue.UnmarshalMap(item, &conn); err != nil {
				fmt.Printf("  skipping undecodable row: %v\n", err)
				continue
			}
			total++
			if conn.AccessToken == "" {
				noAccess++
				fmt.Printf("  NO ACCESS TOKEN  %-40s provider=%s\n", conn.Identity, conn.Provider)
				continue
			}
			if conn.RefreshToken == "" {
				noRefresh++
				fmt.Printf("  NO REFRESH TOKEN %-40s provider=%s updated=%s\n",
					conn.Identity, conn.Provider, conn.UpdatedAt)
			}
		}
	}

	fmt.Printf("\n%d connections scanned: %d without refresh token, %d without access token\n",
		total, noRefresh, noAccess)
	if noRefresh+noAccess > 0 {
		os.Exit(2)
	}
}

package shopify

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "shopmirror/pkg/errors"
)

// Execute runs a Storefront GraphQL query or mutation. GraphQL-level errors are
// returned in the response, not as err; err is reserved for transport failures.
func (c *Client) Execute(ctx context.Context, query string, variables map[string]interface{}) (*GraphQLResponse, error) {
	resp, err := c.storefront.R().
		SetContext(ctx).
		SetBody(GraphQLRequest{Query: query, Variables: variables}).
		Post(c.storefrontURL)
	if err != nil {
		return nil, &apperrors.ErrRemoteUnavailable{Op: "storefront graphql", Err: err}
	}
	if resp.IsError() {
		return nil, statusError("storefront graphql", resp)
	}

	var graphQLResp GraphQLResponse
	if err := json.Unmarshal(resp.Body(), &graphQLResp); err != nil {
		return nil, &apperrors.ErrRemoteUnavailable{
			Op:  "storefront graphql",
			Err: fmt.Errorf("failed to unmarshal response: %w", err),
		}
	}
	return &graphQLResp, nil
}

func (r *GraphQLResponse) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

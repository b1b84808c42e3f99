package shopagent

import (
	"context"
	"fmt"

	"github.com/brizzle/shopagent/capability"
	"github.com/brizzle/shopagent/shop"
)

// Collaborators bundles the external services the shop capabilities act on.
type Collaborators struct {
	Catalog     shop.Catalog
	Orders      shop.Orders
	Designer    Designer
	Fulfillment Fulfillment // optional; nil skips listing creation
	Workflows   Workflows
	Searcher    Searcher
}

type createProductArgs struct {
	Name         string  `json:"name" description:"Product name"`
	Description  string  `json:"description" description:"Product description"`
	Price        float64 `json:"price" description:"Product price"`
	DesignPrompt string  `json:"design_prompt,omitempty" description:"Prompt for AI to generate design"`
}

type generateDesignArgs struct {
	Prompt string `json:"prompt" description:"Description of the design to generate"`
}

type updateOrderStatusArgs struct {
	OrderID string `json:"order_id" description:"Order ID"`
	Status  string `json:"status" description:"New status"`
}

type searchWebArgs struct {
	Query string `json:"query" description:"Search query"`
}

type executeWorkflowArgs struct {
	WorkflowName string         `json:"workflow_name" description:"Name of the workflow"`
	Data         map[string]any `json:"data,omitempty" description:"Data to pass to workflow"`
}

var emptySchema = map[string]any{"type": "object", "properties": map[string]any{}}

// RegisterShopCapabilities registers the full capability set the store agent
// exposes to model providers. Called once at startup; the registry is
// read-only afterwards.
func RegisterShopCapabilities(reg *capability.Registry, c Collaborators) {
	reg.Register(capability.NewFunc(
		"get_products",
		"Fetch all products from the database",
		emptySchema,
		func(ctx context.Context, args map[string]any) (any, error) {
			products, err := c.Catalog.ListProducts(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"products": products}, nil
		},
	))

	reg.Register(capability.NewFuncFromStruct(
		"create_product",
		"Create a new product with print-on-demand integration",
		createProductArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			name, _ := args["name"].(string)
			description, _ := args["description"].(string)
			price, _ := args["price"].(float64)

			imageURL := "https://picsum.photos/800/800"
			if prompt, ok := args["design_prompt"].(string); ok && prompt != "" {
				imageURL = c.Designer.GenerateImage(ctx, prompt)
			}

			var externalID string
			if c.Fulfillment != nil {
				listing, err := c.Fulfillment.CreateListing(ctx, name, description, imageURL)
				if err != nil {
					return nil, fmt.Errorf("create listing: %w", err)
				}
				externalID = fmt.Sprintf("%d", listing.ID)
			}

			product, err := c.Catalog.CreateProduct(ctx, shop.Product{
				Name:              name,
				Description:       description,
				Price:             price,
				ImageURL:          imageURL,
				PrintfulProductID: externalID,
			})
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "product": product}, nil
		},
	))

	reg.Register(capability.NewFuncFromStruct(
		"generate_design",
		"Generate a design/logo image using AI",
		generateDesignArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			prompt, _ := args["prompt"].(string)
			return map[string]any{"success": true, "image_url": c.Designer.GenerateImage(ctx, prompt)}, nil
		},
	))

	reg.Register(capability.NewFunc(
		"get_orders",
		"Fetch all orders from the database",
		emptySchema,
		func(ctx context.Context, args map[string]any) (any, error) {
			orders, err := c.Orders.ListOrders(ctx)
			if err != nil {
				return nil, err
			}
			return map[string]any{"orders": orders}, nil
		},
	))

	reg.Register(capability.NewFuncFromStruct(
		"update_order_status",
		"Update the status of an order",
		updateOrderStatusArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			orderID, _ := args["order_id"].(string)
			status, _ := args["status"].(string)
			order, err := c.Orders.UpdateStatus(ctx, orderID, status)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "order": order}, nil
		},
	))

	reg.Register(capability.NewFuncFromStruct(
		"search_web",
		"Search the web for information",
		searchWebArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			query, _ := args["query"].(string)
			results, err := c.Searcher.Search(ctx, query)
			if err != nil {
				return nil, err
			}
			return map[string]any{"results": results}, nil
		},
	))

	reg.Register(capability.NewFuncFromStruct(
		"execute_workflow",
		"Execute an automation workflow",
		executeWorkflowArgs{},
		func(ctx context.Context, args map[string]any) (any, error) {
			workflowName, _ := args["workflow_name"].(string)
			data, _ := args["data"].(map[string]any)
			result, err := c.Workflows.Execute(ctx, workflowName, data)
			if err != nil {
				return nil, err
			}
			return map[string]any{"success": true, "result": result}, nil
		},
	))
}

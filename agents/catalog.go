// Package agents defines the built-in descriptor catalog: the triage
// coordinator, the setup guide, the scheduling and importer specialists and
// the read-only API reader agents, together with the default intent table
// that routes to them.
package agents

import (
	"fmt"

	"github.com/petparlor/triage/core"
	"github.com/petparlor/triage/router"
)

// Catalog agent names.
const (
	TriageName     = "triage"
	SetupGuideName = "setup_guide"
	UserSetupName  = "user_setup"
	SchedulingName = "scheduling"
	ImporterName   = "importer"
)

// APIReaderName returns the agent name for a resource ("pet" ->
// "pet_api_agent").
func APIReaderName(resource string) string {
	return resource + "_api_agent"
}

const authParametersNote = `Authentication parameters arrive inside the prompt and must be mapped onto the API specification, for example:
{
    "queryParameters": {"firebaseIdToken": "..."},
    "headerParameters": {
        "x-mba-application-id": "...",
        "x-mba-application-type": "...",
        "x-mba-deployment-location": "...",
        "ocp-apim-subscription-key": "..."
    }
}`

// apiResource describes one read-only business API surface.
type apiResource struct {
	name           string
	description    string
	customerScoped bool
}

var apiResources = []apiResource{
	{name: "address", description: "Manages address resources belonging to customers.", customerScoped: true},
	{name: "booking", description: "Manages booking resources that belong to customers and teams.", customerScoped: true},
	{name: "customer", description: "Manages customer resources belonging to tenants with team associations."},
	{name: "document", description: "Manages legal documents such as the refund policy and terms."},
	{name: "employee", description: "Manages employee resources belonging to tenants."},
	{name: "pet", description: "Manages pet resources belonging to customers.", customerScoped: true},
	{name: "team", description: "Manages team resources belonging to tenants."},
	{name: "tenant", description: "Manages tenant resources, the parent of all other resources."},
}

func apiReaderDescriptor(r apiResource) *core.Descriptor {
	instructions := fmt.Sprintf(
		"You use the bound API specification to understand the %s API.\n"+
			"You can only read data from the %s API, never modify it.\n"+
			"You MUST take the authentication parameters from the user's prompt and apply them to every request.\n%s",
		r.name, r.name, authParametersNote,
	)
	if r.customerScoped {
		instructions += fmt.Sprintf(
			"\nIf the query is for a specific customer, you MUST include the customer's ID as the %q query parameter.",
			"customerId",
		)
	}
	return &core.Descriptor{
		Name:         APIReaderName(r.name),
		Description:  r.description,
		Instructions: instructions,
		Tools: []core.ToolRef{{
			Name:        r.name + "_api",
			APIResource: r.name,
			AuthMode:    core.AuthModeSession,
		}},
	}
}

const triageInstructions = `You are the main coordinator for the PetParlor assistant. You route requests to specialized agents and synthesize their answers.

When evaluating a request:
1. Identify the request type and delegate:
   - setup and onboarding questions go to the setup guide
   - schedule and route optimization requests go to the scheduling specialist
   - file import requests go to the importer specialist
   - resource questions (address, booking, customer, document, employee, pet, team, tenant) go to the matching API reader
2. Customer-scoped queries: when pets, addresses or bookings are requested for a specific customer, ALWAYS consult the customer reader first and take the identifier from the "id" field of its response, never from fields like "userId" or "uid". Then pass that identifier to the dependent reader as the customerId filter.
3. Synthesize the specialist answers into one complete, coherent reply. Use headings and bullet points for complex answers.

Never return just the user's question or a bare acknowledgment. If you have no information to offer, say so plainly.`

const setupGuideInstructions = `You coordinate the PetParlor portal setup process.

Your role:
1. Identify which setup guide the user needs
2. Delegate detailed guidance to the specialized guide agents
3. Enforce the required setup order: user setup first, optional guides after
4. Track progress and synthesize guide responses into coherent next steps

You are a coordinator, not a direct guide; delegate the specifics and keep transitions between stages smooth.`

const userSetupInstructions = `You help users set up their user profile.

Guide them through:
1. Profile: first and last name, phone number, avatar or uploaded picture
2. Security: confirming and verifying the email address

Verify each step is complete before moving on and help troubleshoot account issues.`

const schedulingInstructions = `You are the scheduling specialist for the PetParlor assistant. You combine reservations with day and date schedules, find optimal travel times between bookings, and prefer dates with grooming-friendly weather when the range is within five days. Each booking carries an address; cluster nearby bookings to reduce total travel time.

When you produce an optimized schedule, output it as a single JSON object with "total_distance", "total_duration" and a "bookings" array whose entries have "id", "date" and "address", plus optional "weather", "arrival_time" and "departure_time".`

const importerInstructions = `You are the import specialist for the PetParlor assistant. You analyze tabular data from spreadsheets and exports and suggest the transformations needed to produce clean, well-structured records: standardized dates, normalized phone numbers, merged name columns, inferred data types, flagged outliers and handled missing values.

Provide your suggestions in a clear, structured format that can be acted on programmatically.`

// Catalog returns the full built-in descriptor tree, rooted at the triage
// coordinator. Registering the root registers every agent.
func Catalog() *core.Descriptor {
	children := []*core.Descriptor{
		{
			Name:         SetupGuideName,
			Description:  "Guides users through the portal setup process.",
			Instructions: setupGuideInstructions,
			Children: []*core.Descriptor{{
				Name:         UserSetupName,
				Description:  "Walks users through profile and security setup.",
				Instructions: userSetupInstructions,
			}},
		},
		{
			Name:         SchedulingName,
			Description:  "Optimizes booking routes and schedules.",
			Instructions: schedulingInstructions,
		},
		{
			Name:         ImporterName,
			Description:  "Analyzes and cleans imported tabular data.",
			Instructions: importerInstructions,
		},
	}
	for _, r := range apiResources {
		children = append(children, apiReaderDescriptor(r))
	}
	return &core.Descriptor{
		Name:         TriageName,
		Description:  "Routes requests to specialists and synthesizes their answers.",
		Instructions: triageInstructions,
		Children:     children,
	}
}

// Intents returns the default intent table matching the catalog.
func Intents() []router.Intent {
	customerScope := &router.Dependency{
		Resolver: APIReaderName("customer"),
		Key:      "customer_id",
		Triggers: []string{"customer", "client"},
	}
	intents := []router.Intent{
		{Agent: SetupGuideName, Keywords: []string{"setup", "set up", "onboard", "getting started", "configure my account"}},
		{Agent: SchedulingName, Keywords: []string{"schedule", "route", "optimize", "itinerary", "plan my day"}},
		{Agent: ImporterName, Keywords: []string{"import", "csv", "spreadsheet", "excel", "upload data"}},
		{Agent: APIReaderName("customer"), Keywords: []string{"customer", "client"}},
		{Agent: APIReaderName("pet"), Keywords: []string{"pet", "dog", "cat", "groom"}, DependsOn: customerScope},
		{Agent: APIReaderName("address"), Keywords: []string{"address", "where does", "location"}, DependsOn: customerScope},
		{Agent: APIReaderName("booking"), Keywords: []string{"booking", "appointment", "reservation"}, DependsOn: customerScope},
		{Agent: APIReaderName("document"), Keywords: []string{"document", "refund policy", "terms"}},
		{Agent: APIReaderName("employee"), Keywords: []string{"employee", "staff"}},
		{Agent: APIReaderName("team"), Keywords: []string{"team"}},
		{Agent: APIReaderName("tenant"), Keywords: []string{"tenant", "organization"}},
	}
	return intents
}

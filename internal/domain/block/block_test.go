package block

import "testing"

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		b    Block
		want string
	}{
		{"paragraph", Block{Kind: Paragraph, Text: "Data is encrypted."}, "Data is encrypted."},
		{"h1", Block{Kind: Heading1, Text: "Policy"}, "# Policy"},
		{"h2", Block{Kind: Heading2, Text: "Scope"}, "## Scope"},
		{"h3", Block{Kind: Heading3, Text: "Owners"}, "### Owners"},
		{"bullet", Block{Kind: BulletedItem, Text: "AES-256"}, "- AES-256"},
		{"todo open", Block{Kind: ToDo, Text: "Rotate keys"}, "[ ] Rotate keys"},
		{"todo done", Block{Kind: ToDo, Text: "Pen test", Checked: true}, "[x] Pen test"},
		{"divider", Block{Kind: Divider}, "---"},
		{"quote", Block{Kind: Quote, Text: "Least privilege"}, "> Least privilege"},
		{"callout", Block{Kind: Callout, Text: "Reviewed yearly", Icon: "!"}, "! Reviewed yearly"},
		{"code", Block{Kind: Code, Text: "tls 1.2", Language: "yaml"}, "```yaml\ntls 1.2\n```"},
		{"child page", Block{Kind: ChildPage, Text: "Access Control"}, "[Page: Access Control]"},
		{"unsupported", Block{Kind: Unsupported, Text: "ignored"}, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Render(tc.b, 1); got != tc.want {
				t.Errorf("Render = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRenderAll_NumbersRunsAndSkipsEmpty(t *testing.T) {
	blocks := []Block{
		{Kind: Heading2, Text: "Steps"},
		{Kind: NumberedItem, Text: "Request access"},
		{Kind: NumberedItem, Text: "Manager approves"},
		{Kind: Unsupported},
		{Kind: NumberedItem, Text: "Provision"},
	}

	want := "## Steps\n1. Request access\n2. Manager approves\n1. Provision"
	if got := RenderAll(blocks); got != want {
		t.Errorf("RenderAll =\n%s\nwant\n%s", got, want)
	}
}

package convo

// Kind discriminates the entries of a conversation log.
type Kind string

const (
	KindUser           Kind = "user"
	KindAssistantText  Kind = "assistant_text"
	KindAssistantCall  Kind = "assistant_call"
	KindFunctionResult Kind = "function_result"
)

// ImageBlob is an opaque image payload with its mime tag.
type ImageBlob struct {
	Data []byte
	MIME string
}

// Turn is one entry in the conversation log. Fields are populated
// depending on Kind; constructors below keep the combinations honest.
type Turn struct {
	Kind Kind `json:"kind"`

	// user and assistant_text turns.
	Text  string     `json:"text,omitempty"`
	Image *ImageBlob `json:"-"`

	// assistant_call and function_result turns.
	CallID    string         `json:"call_id,omitempty"`
	Function  string         `json:"function,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`

	// function_result turns.
	OK     bool   `json:"ok,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// UserTurn builds a user entry with optional attached image.
func UserTurn(text string, image *ImageBlob) Turn {
	return Turn{Kind: KindUser, Text: text, Image: image}
}

// AssistantText builds a final natural-language answer entry.
func AssistantText(text string) Turn {
	return Turn{Kind: KindAssistantText, Text: text}
}

// AssistantCall builds an entry recording the model's request to execute
// a registered function.
func AssistantCall(callID, function string, arguments map[string]any) Turn {
	return Turn{Kind: KindAssistantCall, CallID: callID, Function: function, Arguments: arguments}
}

// FunctionResult builds the entry matching an assistant_call by call id.
// Exactly one of result/errMsg is meaningful depending on ok.
func FunctionResult(callID, function string, ok bool, result any, errMsg string) Turn {
	return Turn{Kind: KindFunctionResult, CallID: callID, Function: function, OK: ok, Result: result, Error: errMsg}
}

package defs

import "fmt"

// PacketType is the numeric Gearman packet type
type PacketType uint32

const (
	CanDo           PacketType = 1
	CantDo          PacketType = 2
	ResetAbilities  PacketType = 3
	PreSleep        PacketType = 4
	Noop            PacketType = 6
	SubmitJob       PacketType = 7
	JobCreated      PacketType = 8
	GrabJob         PacketType = 9
	NoJob           PacketType = 10
	JobAssign       PacketType = 11
	WorkStatus      PacketType = 12
	WorkComplete    PacketType = 13
	WorkFail        PacketType = 14
	GetStatus       PacketType = 15
	EchoReq         PacketType = 16
	EchoRes         PacketType = 17
	SubmitJobBg     PacketType = 18
	ErrorPacket     PacketType = 19
	StatusRes       PacketType = 20
	SubmitJobHigh   PacketType = 21
	SetClientID     PacketType = 22
	CanDoTimeout    PacketType = 23
	AllYours        PacketType = 24
	WorkException   PacketType = 25
	OptionReq       PacketType = 26
	OptionRes       PacketType = 27
	WorkData        PacketType = 28
	WorkWarning     PacketType = 29
	GrabJobUniq     PacketType = 30
	JobAssignUniq   PacketType = 31
	SubmitJobHighBg PacketType = 32
	SubmitJobLow    PacketType = 33
	SubmitJobLowBg  PacketType = 34
	SubmitJobSched  PacketType = 35
	SubmitJobEpoch  PacketType = 36
)

// schema lists the NUL separated arguments of a packet type. When body is
// set the data after the last argument is an opaque payload.
type schema struct {
	name string
	args []string
	body bool
}

var submitArgs = []string{"function", "uniqueid"}

var schemas = map[PacketType]schema{
	CanDo:           {"CAN_DO", []string{"function"}, false},
	CantDo:          {"CANT_DO", []string{"function"}, false},
	ResetAbilities:  {"RESET_ABILITIES", nil, false},
	PreSleep:        {"PRE_SLEEP", nil, false},
	Noop:            {"NOOP", nil, false},
	SubmitJob:       {"SUBMIT_JOB", submitArgs, true},
	JobCreated:      {"JOB_CREATED", []string{"job"}, false},
	GrabJob:         {"GRAB_JOB", nil, false},
	NoJob:           {"NO_JOB", nil, false},
	JobAssign:       {"JOB_ASSIGN", []string{"job", "function"}, true},
	WorkStatus:      {"WORK_STATUS", []string{"job", "numerator", "denominator"}, false},
	WorkComplete:    {"WORK_COMPLETE", []string{"job"}, true},
	WorkFail:        {"WORK_FAIL", []string{"job"}, false},
	GetStatus:       {"GET_STATUS", []string{"job"}, false},
	EchoReq:         {"ECHO_REQ", nil, true},
	EchoRes:         {"ECHO_RES", nil, true},
	SubmitJobBg:     {"SUBMIT_JOB_BG", submitArgs, true},
	ErrorPacket:     {"ERROR", []string{"code", "text"}, false},
	StatusRes:       {"STATUS_RES", []string{"job", "known", "running", "numerator", "denominator"}, false},
	SubmitJobHigh:   {"SUBMIT_JOB_HIGH", submitArgs, true},
	SetClientID:     {"SET_CLIENT_ID", []string{"id"}, false},
	CanDoTimeout:    {"CAN_DO_TIMEOUT", []string{"function", "timeout"}, false},
	AllYours:        {"ALL_YOURS", nil, false},
	WorkException:   {"WORK_EXCEPTION", []string{"job"}, true},
	OptionReq:       {"OPTION_REQ", []string{"option"}, false},
	OptionRes:       {"OPTION_RES", []string{"option"}, false},
	WorkData:        {"WORK_DATA", []string{"job"}, true},
	WorkWarning:     {"WORK_WARNING", []string{"job"}, true},
	GrabJobUniq:     {"GRAB_JOB_UNIQ", nil, false},
	JobAssignUniq:   {"JOB_ASSIGN_UNIQ", []string{"job", "function", "uniqueid"}, true},
	SubmitJobHighBg: {"SUBMIT_JOB_HIGH_BG", submitArgs, true},
	SubmitJobLow:    {"SUBMIT_JOB_LOW", submitArgs, true},
	SubmitJobLowBg:  {"SUBMIT_JOB_LOW_BG", submitArgs, true},
	SubmitJobSched:  {"SUBMIT_JOB_SCHED", []string{"function", "uniqueid", "minute", "hour", "mday", "month", "wday"}, true},
	SubmitJobEpoch:  {"SUBMIT_JOB_EPOCH", []string{"function", "uniqueid", "epoch"}, true},
}

func (t PacketType) String() string {
	if s, ok := schemas[t]; ok {
		return s.name
	}
	return fmt.Sprintf("UNKNOWN_%d", uint32(t))
}

// Known reports whether the type is part of the protocol
func (t PacketType) Known() bool {
	_, ok := schemas[t]
	return ok
}

// Args returns the argument names in wire order
func (t PacketType) Args() []string {
	return schemas[t].args
}

// HasBody reports whether the type carries a trailing opaque payload.
// Unknown types are treated as body only.
func (t PacketType) HasBody() bool {
	s, ok := schemas[t]
	return !ok || s.body
}

// Packet is one decoded protocol unit
type Packet struct {
	Kind Kind
	Type PacketType
	Args map[string]string
	Body []byte
}

// NewRequest builds a request packet
func NewRequest(t PacketType, args map[string]string, body []byte) *Packet {
	return &Packet{Kind: KindRequest, Type: t, Args: args, Body: body}
}

// NewResponse builds a response packet
func NewResponse(t PacketType, args map[string]string, body []byte) *Packet {
	return &Packet{Kind: KindResponse, Type: t, Args: args, Body: body}
}

// NewText builds a raw admin protocol reply
func NewText(text string) *Packet {
	return &Packet{Kind: KindText, Body: []byte(text)}
}

// Arg returns a named argument, empty when absent
func (p *Packet) Arg(name string) string {
	if p.Args == nil {
		return ""
	}
	return p.Args[name]
}

// Text returns the line of an admin packet
func (p *Packet) Text() string {
	return string(p.Body)
}

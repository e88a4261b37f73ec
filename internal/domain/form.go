package domain

// AuthType is the identity-assertion mode a form requires from respondents.
type AuthType string

const (
	AuthTypeNil        AuthType = "NIL"
	AuthTypeSP         AuthType = "SP"
	AuthTypeCP         AuthType = "CP"
	AuthTypeSGID       AuthType = "SGID"
	AuthTypeSGIDMyInfo AuthType = "SGID_MyInfo"
	AuthTypeMyInfo     AuthType = "MyInfo"
)

const (
	FormStatusPublic  = "PUBLIC"
	FormStatusPrivate = "PRIVATE"
)

// FieldType values that can be verified by OTP.
const (
	FieldTypeMobile = "mobile"
	FieldTypeEmail  = "email"
)

type PaymentType string

const (
	PaymentTypeFixed    PaymentType = "fixed"
	PaymentTypeVariable PaymentType = "variable"
	PaymentTypeProducts PaymentType = "products"
)

// Form is the read-only form document. Forms are authored elsewhere.
type Form struct {
	FormID    string          `json:"id" dynamodbav:"form_id"`
	Title     string          `json:"title" dynamodbav:"title"`
	AuthType  AuthType        `json:"authType" dynamodbav:"auth_type"`
	Status    string          `json:"status" dynamodbav:"status"`
	Onboarded bool            `json:"onboarded" dynamodbav:"onboarded"`
	Fields    []FormField     `json:"form_fields" dynamodbav:"fields"`
	Payments  PaymentSettings `json:"payments_field" dynamodbav:"payments"`
}

type FormField struct {
	FieldID      string `json:"_id" dynamodbav:"field_id"`
	FieldType    string `json:"fieldType" dynamodbav:"field_type"`
	Title        string `json:"title" dynamodbav:"title"`
	IsVerifiable bool   `json:"isVerifiable" dynamodbav:"is_verifiable"`
	Required     bool   `json:"required" dynamodbav:"required"`
}

type PaymentSettings struct {
	Enabled         bool        `json:"enabled" dynamodbav:"enabled"`
	Type            PaymentType `json:"payment_type" dynamodbav:"type"`
	AmountCents     int64       `json:"amount_cents" dynamodbav:"amount_cents"`
	MinAmountCents  int64       `json:"min_amount" dynamodbav:"min_amount_cents"`
	MaxAmountCents  int64       `json:"max_amount" dynamodbav:"max_amount_cents"`
	TargetAccountID string      `json:"-" dynamodbav:"target_account_id"`
	Description     string      `json:"description" dynamodbav:"description"`
	GstEnabled      bool        `json:"gst_enabled" dynamodbav:"gst_enabled"`
	Products        []Product   `json:"products" dynamodbav:"products"`
}

type Product struct {
	ProductID   string `json:"_id" dynamodbav:"product_id"`
	Name        string `json:"name" dynamodbav:"name"`
	AmountCents int64  `json:"amount_cents" dynamodbav:"amount_cents"`
	Multi       bool   `json:"multi_qty" dynamodbav:"multi"`
	MinQty      int    `json:"min_qty" dynamodbav:"min_qty"`
	MaxQty      int    `json:"max_qty" dynamodbav:"max_qty"`
}

// IsVerifiableType reports whether fieldType can carry an OTP challenge.
func IsVerifiableType(fieldType string) bool {
	return fieldType == FieldTypeMobile || fieldType == FieldTypeEmail
}

// VerifiableFields returns the fields that require OTP verification, in form order.
func (f *Form) VerifiableFields() []FormField {
	var out []FormField
	for _, ff := range f.Fields {
		if ff.IsVerifiable && IsVerifiableType(ff.FieldType) {
			out = append(out, ff)
		}
	}
	return out
}

func (f *Form) IsPublic() bool { return f.Status == FormStatusPublic }

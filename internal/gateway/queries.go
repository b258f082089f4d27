package gateway

const basketFields = `
	id
	items {
		id
		courseId
		itemType
		price
		totalPrice
		isTaster
		payDeposit
		assignToUserId
		chargeFromDate
	}
	subTotal
	discountTotal
	promoCodeDiscountValue
	creditTotal
	tax
	total
	chargeTotal
	payLater
	promoCode
	useCredit
`

const mutationFields = `
	success
	message
	errorCode
	errors { path message }
	basket {` + basketFields + `}
`

const paymentMethodFields = `
	id
	type
	last4
	brand
	expMonth
	expYear
	isDefault
	billingAddress { line1 line2 city county postcode country }
`

const orderFields = `
	id
	userId
	status
	items {
		id
		courseId
		itemType
		price
		totalPrice
		isTaster
		payDeposit
	}
	subTotal
	discountTotal
	promoCodeDiscountValue
	creditTotal
	tax
	total
	chargeTotal
	payLater
	paymentMethodId
	paymentIntentId
	paymentTransactionStatus
	createdAt
	updatedAt
`

const (
	queryGetBasket = `query GetBasket {
	getBasket {` + basketFields + `}
}`

	mutationInitBasket = `mutation InitBasket {
	initBasket {` + basketFields + `}
}`

	mutationAddItem = `mutation AddItem($input: AddItemInput!) {
	addItem(input: $input) {` + mutationFields + `}
}`

	mutationRemoveItem = `mutation RemoveItem($courseId: ID!, $itemType: ItemType!) {
	removeItem(courseId: $courseId, itemType: $itemType) {` + mutationFields + `}
}`

	mutationUseCredit = `mutation UseCreditForBasket($useCredit: Boolean!) {
	useCreditForBasket(useCredit: $useCredit) {` + mutationFields + `}
}`

	mutationApplyPromoCode = `mutation ApplyPromoCode($code: String!) {
	applyPromoCode(code: $code) {` + mutationFields + `}
}`

	mutationDestroyBasket = `mutation DestroyBasket {
	destroyBasket
}`

	queryGetPaymentMethods = `query GetPaymentMethods {
	getPaymentMethods {` + paymentMethodFields + `}
}`

	queryGetStripePublishableKey = `query GetStripePublishableKey {
	getStripePublishableKey
}`

	mutationCreatePaymentMethod = `mutation CreatePaymentMethod($input: CreatePaymentMethodInput!) {
	createPaymentMethod(input: $input) {` + paymentMethodFields + `}
}`

	mutationDeletePaymentMethod = `mutation DeletePaymentMethod($id: ID!) {
	deletePaymentMethod(id: $id)
}`

	mutationSetDefaultPaymentMethod = `mutation SetDefaultPaymentMethod($id: ID!) {
	setDefaultPaymentMethod(id: $id)
}`

	mutationPlaceOrder = `mutation PlaceOrder($data: PlaceOrderInput!) {
	placeOrder(data: $data) {
		order {` + orderFields + `}
		nextAction
		clientSecret
		paymentIntentId
		paymentTransactionStatus
		errors { path message }
	}
}`

	mutationUpdatePaymentIntent = `mutation UpdatePaymentIntent($id: ID!) {
	updatePaymentIntent(id: $id)
}`

	queryGetOrder = `query GetOrder($id: ID!) {
	getOrder(id: $id) {` + orderFields + `}
}`

	queryGetOrderHistory = `query GetOrderHistory($limit: Int!, $offset: Int!) {
	getOrderHistory(limit: $limit, offset: $offset) {
		totalCount
		orders {` + orderFields + `}
	}
}`

	mutationCancelOrder = `mutation CancelOrder($id: ID!) {
	cancelOrder(id: $id)
}`

	mutationProcessRefund = `mutation ProcessRefund($orderId: ID!, $amount: Int!, $reason: String) {
	processRefund(orderId: $orderId, amount: $amount, reason: $reason)
}`
)

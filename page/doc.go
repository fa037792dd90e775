package page

//go:generate mockgen -destination=mocks/provider.go -package=mocks github.com/vkngwrapper/kma/page Provider
